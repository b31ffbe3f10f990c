package member

import "time"

// Member is the identity record of a user inside one company. The id doubles as the user id
// carried in tokens.
type Member struct {
	ID           string    `gorm:"primaryKey;size:36"`
	CompanyID    string    `gorm:"column:company_id;size:36;not null;index"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	FullName     string    `gorm:"column:full_name;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Role         string    `gorm:"column:role;size:32;not null"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Member) TableName() string { return "members" }
