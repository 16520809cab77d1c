package model

// AuthRequest is a suspended authorize attempt, keyed by an unguessable
// resumption token. It is consumed exactly once when the user returns
// from the login page.
type AuthRequest struct {
	ID                  string `gorm:"column:id;primaryKey"`
	ClientID            string `gorm:"column:client_id;not null"`
	RedirectURI         string `gorm:"column:redirect_uri;not null"`
	CodeChallenge       string `gorm:"column:code_challenge;not null"`
	CodeChallengeMethod string `gorm:"column:code_challenge_method;not null"`
	Scope               string `gorm:"column:scope"`
	State               string `gorm:"column:state"`
	ExpiresAt           int64  `gorm:"column:expires_at;not null"`
	CreatedAt           int64  `gorm:"column:created_at;not null"`
}

func (AuthRequest) TableName() string {
	return "auth_requests"
}
