package customer

import "time"

type Customer struct {
	ID        string    `gorm:"primaryKey;size:36"`
	CompanyID string    `gorm:"column:company_id;size:36;not null;uniqueIndex:idx_customers_company_name,priority:1"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:idx_customers_company_name,priority:2,expression:lower(name)"`
	Phone     string    `gorm:"column:phone"`
	Email     string    `gorm:"column:email"`
	CreatedBy string    `gorm:"column:created_by;size:36;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Customer) TableName() string { return "customers" }
