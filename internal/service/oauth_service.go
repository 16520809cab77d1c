package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/model"
	"github.com/gatehouse-labs/gatehouse/internal/pkce"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Authorization codes and resumption tokens share a 10 minute window.
const (
	AuthorizationCodeTTL = 10 * time.Minute
	AuthRequestTTL       = 10 * time.Minute
)

var (
	ErrUnsupportedResponseType    = errors.New("unsupported response type")
	ErrUnsupportedGrantType       = errors.New("unsupported grant type")
	ErrUnsupportedChallengeMethod = errors.New("unsupported code challenge method")
	ErrMissingCodeChallenge       = errors.New("missing code challenge")
	ErrInvalidClient              = errors.New("invalid client")
	ErrRedirectURINotAllowed      = errors.New("redirect uri not in allow-list")
	ErrInvalidGrant               = errors.New("invalid grant")
	ErrAuthRequestNotFound        = errors.New("auth request not found")
)

type OAuthServiceConfig struct {
	Database *gorm.DB
}

type OAuthService struct {
	config  OAuthServiceConfig
	clients *ClientService
	users   *UserService
	tokens  *TokenService
}

func NewOAuthService(config OAuthServiceConfig, clients *ClientService, users *UserService, tokens *TokenService) *OAuthService {
	return &OAuthService{
		config:  config,
		clients: clients,
		users:   users,
		tokens:  tokens,
	}
}

type AuthorizeParams struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Scope               string
	State               string
}

// ValidateAuthorizeRequest checks everything that must hold before a code
// may be issued. The error distinguishes failures that must never be
// redirected (unknown client, unregistered redirect URI) from the rest;
// the controller keys off ErrInvalidClient and ErrRedirectURINotAllowed.
func (os *OAuthService) ValidateAuthorizeRequest(params AuthorizeParams) (*model.Client, error) {
	client, err := os.clients.GetClient(params.ClientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	if !client.IsActive || client.ClientType != model.ClientTypePKCE {
		return nil, ErrInvalidClient
	}

	if !os.clients.ValidateRedirectURI(client, params.RedirectURI) {
		return nil, ErrRedirectURINotAllowed
	}

	if params.ResponseType != "code" {
		return client, ErrUnsupportedResponseType
	}

	if params.CodeChallenge == "" {
		return client, ErrMissingCodeChallenge
	}

	// S256 only; accepting plain would let an interceptor replay the
	// challenge as the verifier
	if params.CodeChallengeMethod != pkce.MethodS256 {
		return client, ErrUnsupportedChallengeMethod
	}

	return client, nil
}

// CreateAuthorizationCode persists a fresh single-use code bound to the
// client, user, redirect URI and PKCE challenge.
func (os *OAuthService) CreateAuthorizationCode(clientID string, userID string, params AuthorizeParams) (string, error) {
	code, err := generateOpaqueToken()
	if err != nil {
		return "", err
	}

	now := time.Now()

	record := model.AuthorizationCode{
		Code:                code,
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         params.RedirectURI,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
		Used:                false,
		ExpiresAt:           now.Add(AuthorizationCodeTTL).Unix(),
		CreatedAt:           now.Unix(),
	}

	if err := os.config.Database.Create(&record).Error; err != nil {
		return "", err
	}

	return code, nil
}

// CreateAuthRequest suspends an authorize attempt across the login
// interaction. The returned resumption token is in the same entropy class
// as an authorization code.
func (os *OAuthService) CreateAuthRequest(params AuthorizeParams) (string, error) {
	id, err := generateOpaqueToken()
	if err != nil {
		return "", err
	}

	now := time.Now()

	record := model.AuthRequest{
		ID:                  id,
		ClientID:            params.ClientID,
		RedirectURI:         params.RedirectURI,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
		Scope:               params.Scope,
		State:               params.State,
		ExpiresAt:           now.Add(AuthRequestTTL).Unix(),
		CreatedAt:           now.Unix(),
	}

	if err := os.config.Database.Create(&record).Error; err != nil {
		return "", err
	}

	return id, nil
}

// ConsumeAuthRequest returns and deletes a pending auth request. The delete
// is conditional on the row still existing, so only one resume attempt per
// token can ever observe it.
func (os *OAuthService) ConsumeAuthRequest(id string) (*model.AuthRequest, error) {
	var record model.AuthRequest
	err := os.config.Database.Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuthRequestNotFound
		}
		return nil, err
	}

	res := os.config.Database.Where("id = ?", id).Delete(&model.AuthRequest{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrAuthRequestNotFound
	}

	if record.ExpiresAt < time.Now().Unix() {
		return nil, ErrAuthRequestNotFound
	}

	return &record, nil
}

type ExchangeParams struct {
	GrantType    string
	ClientID     string
	Code         string
	RedirectURI  string
	CodeVerifier string
}

type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	UserID      string   `json:"user_id,omitempty"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	IsAdmin     bool     `json:"is_admin,omitempty"`
	Scope       string   `json:"scope,omitempty"`
}

// Exchange redeems an authorization code for a bearer token. Every grant
// failure maps to ErrInvalidGrant so the endpoint cannot be used as an
// oracle for guessing codes.
func (os *OAuthService) Exchange(params ExchangeParams) (*TokenResponse, error) {
	if params.GrantType != "authorization_code" {
		return nil, ErrUnsupportedGrantType
	}

	var record model.AuthorizationCode
	err := os.config.Database.Where("code = ?", params.Code).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if record.Used || record.ExpiresAt < time.Now().Unix() {
		os.burnCode(record.Code)
		return nil, ErrInvalidGrant
	}

	if record.ClientID != params.ClientID {
		log.Warn().Str("client_id", params.ClientID).Msg("Token exchange with mismatched client")
		os.burnCode(record.Code)
		return nil, ErrInvalidGrant
	}

	if record.RedirectURI != params.RedirectURI {
		log.Warn().Str("client_id", params.ClientID).Msg("Token exchange with mismatched redirect URI")
		os.burnCode(record.Code)
		return nil, ErrInvalidGrant
	}

	if record.CodeChallengeMethod != pkce.MethodS256 || !pkce.VerifyChallenge(params.CodeVerifier, record.CodeChallenge) {
		log.Warn().Str("client_id", params.ClientID).Msg("Token exchange with failed PKCE verification")
		os.burnCode(record.Code)
		return nil, ErrInvalidGrant
	}

	// The conditional update is the serialization point: of two concurrent
	// redemptions only one can flip used from 0 to 1.
	res := os.config.Database.Model(&model.AuthorizationCode{}).
		Where("code = ? AND used = ?", record.Code, false).
		Update("used", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidGrant
	}

	user, err := os.users.GetUser(record.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInvalidGrant
	}

	roles, err := os.users.GetUserRoles(user.ID)
	if err != nil {
		return nil, err
	}

	accessToken, err := os.tokens.MintUserToken(user, roles)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   os.tokens.AccessTokenExpiry(),
		UserID:      user.ID,
		Email:       user.Email,
		Roles:       roles,
		IsAdmin:     user.IsAdmin,
	}, nil
}

// ClientCredentials authenticates a service client and mints a scoped
// bearer token for it.
func (os *OAuthService) ClientCredentials(clientID string, clientSecret string) (*TokenResponse, error) {
	client, err := os.clients.GetClient(clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	if !client.IsActive || client.ClientType != model.ClientTypeCredentials {
		return nil, ErrInvalidClient
	}

	if !os.clients.VerifyClientSecret(client, clientSecret) {
		return nil, ErrInvalidClient
	}

	scopes := os.clients.ClientScopes(client)

	accessToken, err := os.tokens.MintClientToken(client, scopes)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   os.tokens.AccessTokenExpiry(),
		Scope:       strings.Join(scopes, " "),
	}, nil
}

// CleanupExpired removes expired codes, auth requests and sessions. Called
// by the housekeeping routine; correctness never depends on it since every
// read path checks expiry itself.
func (os *OAuthService) CleanupExpired(ctx context.Context) error {
	now := time.Now().Unix()
	db := os.config.Database.WithContext(ctx)

	if err := db.Where("expires_at < ?", now).Delete(&model.AuthorizationCode{}).Error; err != nil {
		return fmt.Errorf("failed to purge authorization codes: %w", err)
	}
	if err := db.Where("expires_at < ?", now).Delete(&model.AuthRequest{}).Error; err != nil {
		return fmt.Errorf("failed to purge auth requests: %w", err)
	}
	if err := db.Where("expiry < ?", now).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}

	return nil
}

// burnCode marks a code used after a failed validation so it can never
// become redeemable again, even under a concurrent redemption race.
func (os *OAuthService) burnCode(code string) {
	err := os.config.Database.Model(&model.AuthorizationCode{}).
		Where("code = ?", code).
		Update("used", true).Error
	if err != nil {
		log.Error().Err(err).Msg("Failed to burn authorization code")
	}
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
