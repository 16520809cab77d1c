package model

const (
	ClientTypePKCE        = "oauth_pkce"
	ClientTypeCredentials = "client_credentials"
)

type Client struct {
	ClientID     string `gorm:"column:client_id;primaryKey"`
	ClientName   string `gorm:"column:client_name"`
	ClientType   string `gorm:"column:client_type;not null"`
	SecretHash   string `gorm:"column:secret_hash"`
	RedirectURIs string `gorm:"column:redirect_uris"` // JSON array
	Scopes       string `gorm:"column:scopes"`        // JSON array
	IsActive     bool   `gorm:"column:is_active;default:true"`
	CreatedAt    int64  `gorm:"column:created_at"`
	UpdatedAt    int64  `gorm:"column:updated_at"`
}

func (Client) TableName() string {
	return "clients"
}
