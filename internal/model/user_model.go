package model

type User struct {
	ID             string `gorm:"column:id;primaryKey"`
	Username       string `gorm:"column:username;unique;not null"`
	Email          string `gorm:"column:email;unique;not null"`
	Name           string `gorm:"column:name"`
	PasswordHash   string `gorm:"column:password_hash;not null"`
	TotpSecret     string `gorm:"column:totp_secret"`
	IsAdmin        bool   `gorm:"column:is_admin;default:false"`
	IsActive       bool   `gorm:"column:is_active;default:true"`
	OrganizationID string `gorm:"column:organization_id"`
	BusinessUnitID string `gorm:"column:business_unit_id"`
	CreatedAt      int64  `gorm:"column:created_at"`
	UpdatedAt      int64  `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
