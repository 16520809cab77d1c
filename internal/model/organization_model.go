package model

type Organization struct {
	ID        string `gorm:"column:id;primaryKey"`
	Name      string `gorm:"column:name;unique;not null"`
	CreatedAt int64  `gorm:"column:created_at"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (Organization) TableName() string {
	return "organizations"
}
