package model

type AuthorizationCode struct {
	Code                string `gorm:"column:code;primaryKey"`
	ClientID            string `gorm:"column:client_id;not null"`
	UserID              string `gorm:"column:user_id;not null"`
	RedirectURI         string `gorm:"column:redirect_uri;not null"`
	CodeChallenge       string `gorm:"column:code_challenge;not null"`
	CodeChallengeMethod string `gorm:"column:code_challenge_method;not null"`
	Used                bool   `gorm:"column:used;default:false"`
	ExpiresAt           int64  `gorm:"column:expires_at;not null"`
	CreatedAt           int64  `gorm:"column:created_at;not null"`
}

func (AuthorizationCode) TableName() string {
	return "authorization_codes"
}
