package config

// Version information, set at build time

var Version = "development"
var CommitHash = "development"
var BuildTimestamp = "0000-00-00T00:00:00Z"

// Session cookie name

var SessionCookieName = "gatehouse-session"

// Main app config

type Config struct {
	Port              int    `mapstructure:"port" validate:"required"`
	Address           string `validate:"required,ip4_addr" mapstructure:"address"`
	AppURL            string `validate:"required,url" mapstructure:"app-url"`
	AppTitle          string `mapstructure:"app-title"`
	SessionSecret     string `mapstructure:"session-secret" validate:"required,min=32"`
	SecureCookie      bool   `mapstructure:"secure-cookie"`
	SessionExpiry     int    `mapstructure:"session-expiry"`
	AccessTokenExpiry int    `mapstructure:"access-token-expiry"`
	LogLevel          string `mapstructure:"log-level" validate:"oneof=trace debug info warn error fatal panic"`
	LoginTimeout      int    `mapstructure:"login-timeout"`
	LoginMaxRetries   int    `mapstructure:"login-max-retries"`
	DatabasePath      string `mapstructure:"database-path" validate:"required"`
	TrustedProxies    string `mapstructure:"trusted-proxies"`
}

// User/session related stuff

type UserContext struct {
	UserID      string
	Username    string
	Name        string
	Email       string
	Roles       []string
	IsLoggedIn  bool
	IsAdmin     bool
	TotpPending bool
	TotpEnabled bool
}

// ClientContext is set by the admin middleware when a request is
// authenticated with a service-client bearer token instead of a session.

type ClientContext struct {
	ClientID string
	Scopes   []string
}
