package model

type Role struct {
	ID          string `gorm:"column:id;primaryKey"`
	Name        string `gorm:"column:name;unique;not null"`
	Description string `gorm:"column:description"`
	CreatedAt   int64  `gorm:"column:created_at"`
}

func (Role) TableName() string {
	return "roles"
}

type UserRole struct {
	UserID string `gorm:"column:user_id;primaryKey"`
	RoleID string `gorm:"column:role_id;primaryKey"`
}

func (UserRole) TableName() string {
	return "user_roles"
}
