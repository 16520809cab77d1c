package model

type BusinessUnit struct {
	ID             string `gorm:"column:id;primaryKey"`
	OrganizationID string `gorm:"column:organization_id;not null"`
	ParentID       string `gorm:"column:parent_id"`
	Name           string `gorm:"column:name;not null"`
	CreatedAt      int64  `gorm:"column:created_at"`
	UpdatedAt      int64  `gorm:"column:updated_at"`
}

func (BusinessUnit) TableName() string {
	return "business_units"
}
