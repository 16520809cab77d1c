package model

type Session struct {
	UUID        string `gorm:"column:uuid;primaryKey"`
	UserID      string `gorm:"column:user_id;not null"`
	TotpPending bool   `gorm:"column:totp_pending"`
	Expiry      int64  `gorm:"column:expiry"`
}

func (Session) TableName() string {
	return "sessions"
}
