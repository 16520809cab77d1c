package service

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientIDTaken  = errors.New("client id already registered")
)

type ClientServiceConfig struct {
	Database *gorm.DB
}

type ClientService struct {
	config ClientServiceConfig
}

func NewClientService(config ClientServiceConfig) *ClientService {
	return &ClientService{
		config: config,
	}
}

type CreateClientParams struct {
	ClientID     string
	ClientName   string
	ClientType   string
	RedirectURIs []string
	Scopes       []string
}

// CreateClient registers a client. For client_credentials clients a secret
// is generated and returned exactly once; only its bcrypt hash is stored.
func (cs *ClientService) CreateClient(params CreateClientParams) (*model.Client, string, error) {
	var count int64
	if err := cs.config.Database.Model(&model.Client{}).Where("client_id = ?", params.ClientID).Count(&count).Error; err != nil {
		return nil, "", err
	}
	if count > 0 {
		return nil, "", ErrClientIDTaken
	}

	redirectURIs, err := json.Marshal(params.RedirectURIs)
	if err != nil {
		return nil, "", err
	}

	scopes, err := json.Marshal(params.Scopes)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().Unix()

	client := model.Client{
		ClientID:     params.ClientID,
		ClientName:   params.ClientName,
		ClientType:   params.ClientType,
		RedirectURIs: string(redirectURIs),
		Scopes:       string(scopes),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var secret string

	if params.ClientType == model.ClientTypeCredentials {
		secret, err = generateClientSecret()
		if err != nil {
			return nil, "", err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", fmt.Errorf("failed to hash client secret: %w", err)
		}

		client.SecretHash = string(hash)
	}

	if err := cs.config.Database.Create(&client).Error; err != nil {
		return nil, "", err
	}

	return &client, secret, nil
}

func (cs *ClientService) GetClient(clientID string) (*model.Client, error) {
	var client model.Client
	err := cs.config.Database.Where("client_id = ?", clientID).First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (cs *ClientService) ListClients() ([]model.Client, error) {
	var clients []model.Client
	if err := cs.config.Database.Order("client_id").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

type UpdateClientParams struct {
	ClientName   *string
	RedirectURIs []string
	Scopes       []string
	IsActive     *bool
}

func (cs *ClientService) UpdateClient(clientID string, params UpdateClientParams) (*model.Client, error) {
	client, err := cs.GetClient(clientID)
	if err != nil {
		return nil, err
	}

	if params.ClientName != nil {
		client.ClientName = *params.ClientName
	}
	if params.RedirectURIs != nil {
		redirectURIs, err := json.Marshal(params.RedirectURIs)
		if err != nil {
			return nil, err
		}
		client.RedirectURIs = string(redirectURIs)
	}
	if params.Scopes != nil {
		scopes, err := json.Marshal(params.Scopes)
		if err != nil {
			return nil, err
		}
		client.Scopes = string(scopes)
	}
	if params.IsActive != nil {
		client.IsActive = *params.IsActive
	}

	client.UpdatedAt = time.Now().Unix()

	if err := cs.config.Database.Save(client).Error; err != nil {
		return nil, err
	}

	return client, nil
}

// RotateSecret replaces the secret of a client_credentials client and
// returns the new secret once.
func (cs *ClientService) RotateSecret(clientID string) (string, error) {
	client, err := cs.GetClient(clientID)
	if err != nil {
		return "", err
	}

	if client.ClientType != model.ClientTypeCredentials {
		return "", fmt.Errorf("client %s has no secret to rotate", clientID)
	}

	secret, err := generateClientSecret()
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash client secret: %w", err)
	}

	err = cs.config.Database.Model(&model.Client{}).Where("client_id = ?", clientID).Updates(map[string]any{
		"secret_hash": string(hash),
		"updated_at":  time.Now().Unix(),
	}).Error
	if err != nil {
		return "", err
	}

	return secret, nil
}

func (cs *ClientService) VerifyClientSecret(client *model.Client, secret string) bool {
	if client.SecretHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)) == nil
}

// ValidateRedirectURI requires an exact string match against the registered
// set. No prefix or wildcard matching; this comparison is what keeps codes
// out of attacker-controlled callbacks.
func (cs *ClientService) ValidateRedirectURI(client *model.Client, redirectURI string) bool {
	if client.RedirectURIs == "" {
		return false
	}

	var redirectURIs []string
	if err := json.Unmarshal([]byte(client.RedirectURIs), &redirectURIs); err != nil {
		log.Error().Err(err).Str("client_id", client.ClientID).Msg("Failed to unmarshal redirect URIs")
		return false
	}

	for _, uri := range redirectURIs {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

func (cs *ClientService) ClientRedirectURIs(client *model.Client) []string {
	if client.RedirectURIs == "" {
		return nil
	}

	var redirectURIs []string
	if err := json.Unmarshal([]byte(client.RedirectURIs), &redirectURIs); err != nil {
		log.Error().Err(err).Str("client_id", client.ClientID).Msg("Failed to unmarshal redirect URIs")
		return nil
	}
	return redirectURIs
}

func (cs *ClientService) ClientScopes(client *model.Client) []string {
	if client.Scopes == "" {
		return nil
	}

	var scopes []string
	if err := json.Unmarshal([]byte(client.Scopes), &scopes); err != nil {
		log.Error().Err(err).Str("client_id", client.ClientID).Msg("Failed to unmarshal scopes")
		return nil
	}
	return scopes
}

// HasScope reports whether the client may request the given scope.
func (cs *ClientService) HasScope(client *model.Client, scope string) bool {
	for _, s := range cs.ClientScopes(client) {
		if s == scope {
			return true
		}
	}
	return false
}

func generateClientSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate client secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
