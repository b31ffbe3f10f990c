package notification

import "time"

type Notification struct {
	ID         string     `gorm:"primaryKey;size:36"`
	CompanyID  string     `gorm:"column:company_id;size:36;not null"`
	UserID     string     `gorm:"column:user_id;size:36;not null;index"`
	Kind       string     `gorm:"column:kind;size:48;not null"`
	Title      string     `gorm:"column:title;not null"`
	Body       string     `gorm:"column:body"`
	EntityType string     `gorm:"column:entity_type;size:32"`
	EntityID   string     `gorm:"column:entity_id;size:36"`
	ReadAt     *time.Time `gorm:"column:read_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }
