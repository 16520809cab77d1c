package service

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	TokenUseUser   = "user"
	TokenUseClient = "client"
)

type TokenServiceConfig struct {
	Issuer            string
	AccessTokenExpiry int
	Database          *gorm.DB
}

type TokenService struct {
	config     TokenServiceConfig
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

type TokenClaims struct {
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	IsAdmin  bool     `json:"is_admin,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
	TokenUse string   `json:"token_use"`
	jwt.RegisteredClaims
}

func NewTokenService(config TokenServiceConfig) *TokenService {
	return &TokenService{
		config: config,
	}
}

// Init loads the persisted signing key or generates one on first boot. The
// key lives in the database so restarts and replicas mint and verify with
// the same key pair.
func (ts *TokenService) Init() error {
	var record model.SigningKey
	err := ts.config.Database.Order("id").First(&record).Error

	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return fmt.Errorf("failed to generate RSA key: %w", err)
		}

		encoded := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
		})

		record = model.SigningKey{
			PrivateKey: string(encoded),
			CreatedAt:  time.Now().Unix(),
		}

		if err := ts.config.Database.Create(&record).Error; err != nil {
			return err
		}

		log.Info().Msg("Generated new token signing key")
	}

	block, _ := pem.Decode([]byte(record.PrivateKey))
	if block == nil {
		return errors.New("failed to decode signing key PEM")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse signing key: %w", err)
	}

	ts.privateKey = privateKey
	ts.publicKey = &privateKey.PublicKey
	return nil
}

func (ts *TokenService) AccessTokenExpiry() int {
	return ts.config.AccessTokenExpiry
}

// MintUserToken issues a bearer token vouching for a user identity.
func (ts *TokenService) MintUserToken(user *model.User, roles []string) (string, error) {
	now := time.Now()

	claims := TokenClaims{
		Username: user.Username,
		Email:    user.Email,
		Roles:    roles,
		IsAdmin:  user.IsAdmin,
		TokenUse: TokenUseUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.config.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.config.AccessTokenExpiry) * time.Second)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signed, err := token.SignedString(ts.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// MintClientToken issues a bearer token for a service client.
func (ts *TokenService) MintClientToken(client *model.Client, scopes []string) (string, error) {
	now := time.Now()

	claims := TokenClaims{
		Scopes:   scopes,
		TokenUse: TokenUseClient,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.config.Issuer,
			Subject:   client.ClientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.config.AccessTokenExpiry) * time.Second)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signed, err := token.SignedString(ts.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyToken rejects expired or tampered tokens and returns the claims.
func (ts *TokenService) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.publicKey, nil
	}, jwt.WithIssuer(ts.config.Issuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetJWKS returns the public key set for token verification by relying
// applications.
func (ts *TokenService) GetJWKS() map[string]any {
	return map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(ts.publicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(ts.publicKey.E)).Bytes()),
			},
		},
	}
}
