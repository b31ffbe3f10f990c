package company

import "time"

type Company struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"column:name;not null"`
	Currency  string    `gorm:"column:currency;size:3;not null;default:SAR"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Company) TableName() string { return "companies" }
