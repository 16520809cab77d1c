package service

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
)

type LoginAttempt struct {
	FailedAttempts int
	LastAttempt    time.Time
	LockedUntil    time.Time
}

type AuthServiceConfig struct {
	SessionSecret     string
	SessionExpiry     int
	SecureCookie      bool
	LoginTimeout      int
	LoginMaxRetries   int
	SessionCookieName string
	Database          *gorm.DB
}

type AuthService struct {
	config        AuthServiceConfig
	users         *UserService
	loginAttempts map[string]*LoginAttempt
	loginMutex    sync.RWMutex
	store         *sessions.CookieStore
}

func NewAuthService(config AuthServiceConfig, users *UserService) *AuthService {
	return &AuthService{
		config:        config,
		users:         users,
		loginAttempts: make(map[string]*LoginAttempt),
	}
}

func (auth *AuthService) Init() error {
	// The cookie only carries the session uuid; everything else lives in
	// the sessions table so that restarts and replicas agree on state.
	encryptionKey := sha256.Sum256([]byte(auth.config.SessionSecret))
	store := sessions.NewCookieStore([]byte(auth.config.SessionSecret), encryptionKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   auth.config.SessionExpiry,
		Secure:   auth.config.SecureCookie,
		HttpOnly: true,
	}
	auth.store = store
	return nil
}

// ValidateCredentials resolves a username to an active user and checks the
// password. Both failure modes return ErrInvalidCredentials so callers
// cannot distinguish them.
func (auth *AuthService) ValidateCredentials(username string, password string) (*model.User, error) {
	user, err := auth.users.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		log.Warn().Str("username", username).Msg("Login attempt for inactive user")
		return nil, ErrInvalidCredentials
	}

	if !auth.users.CheckPassword(user, password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (auth *AuthService) getCookieSession(c *gin.Context) (*sessions.Session, error) {
	session, err := auth.store.Get(c.Request, auth.config.SessionCookieName)

	// If there was an error getting the session, it might be invalid so let's clear it and retry
	if err != nil {
		log.Debug().Err(err).Msg("Invalid session cookie, clearing and retrying")
		c.SetCookie(auth.config.SessionCookieName, "", -1, "/", "", auth.config.SecureCookie, true)
		session, err = auth.store.Get(c.Request, auth.config.SessionCookieName)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
	}

	return session, nil
}

func (auth *AuthService) CreateSession(c *gin.Context, user *model.User, totpPending bool) (*model.Session, error) {
	expiry := auth.config.SessionExpiry

	// A TOTP-pending session only needs to survive the second factor step
	if totpPending {
		expiry = 3600
	}

	record := model.Session{
		UUID:        uuid.New().String(),
		UserID:      user.ID,
		TotpPending: totpPending,
		Expiry:      time.Now().Add(time.Duration(expiry) * time.Second).Unix(),
	}

	if err := auth.config.Database.Create(&record).Error; err != nil {
		return nil, err
	}

	session, err := auth.getCookieSession(c)
	if err != nil {
		return nil, err
	}

	session.Values["uuid"] = record.UUID

	if err := session.Save(c.Request, c.Writer); err != nil {
		return nil, fmt.Errorf("failed to save session cookie: %w", err)
	}

	return &record, nil
}

func (auth *AuthService) GetSession(c *gin.Context) (*model.Session, error) {
	session, err := auth.getCookieSession(c)
	if err != nil {
		return nil, err
	}

	id, ok := session.Values["uuid"].(string)
	if !ok || id == "" {
		return nil, ErrSessionNotFound
	}

	var record model.Session
	err = auth.config.Database.Where("uuid = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	// Expiry is passive: checked on read, swept by the cleanup routine
	if record.Expiry < time.Now().Unix() {
		auth.config.Database.Where("uuid = ?", id).Delete(&model.Session{})
		return nil, ErrSessionNotFound
	}

	return &record, nil
}

// CompleteTotp promotes a TOTP-pending session to a fully authenticated one.
func (auth *AuthService) CompleteTotp(session *model.Session) error {
	return auth.config.Database.Model(&model.Session{}).Where("uuid = ?", session.UUID).Updates(map[string]any{
		"totp_pending": false,
		"expiry":       time.Now().Add(time.Duration(auth.config.SessionExpiry) * time.Second).Unix(),
	}).Error
}

func (auth *AuthService) DeleteSession(c *gin.Context) {
	session, err := auth.getCookieSession(c)
	if err != nil {
		log.Debug().Err(err).Msg("No session cookie to delete")
		return
	}

	if id, ok := session.Values["uuid"].(string); ok && id != "" {
		if err := auth.config.Database.Where("uuid = ?", id).Delete(&model.Session{}).Error; err != nil {
			log.Error().Err(err).Msg("Failed to delete session record")
		}
	}

	session.Options.MaxAge = -1

	if err := session.Save(c.Request, c.Writer); err != nil {
		log.Error().Err(err).Msg("Failed to clear session cookie")
	}
}

func (auth *AuthService) IsAccountLocked(identifier string) (bool, int) {
	auth.loginMutex.RLock()
	defer auth.loginMutex.RUnlock()

	// Return false if rate limiting is not configured
	if auth.config.LoginMaxRetries <= 0 || auth.config.LoginTimeout <= 0 {
		return false, 0
	}

	attempt, exists := auth.loginAttempts[identifier]
	if !exists {
		return false, 0
	}

	// If account is locked, check if lock time has expired
	if attempt.LockedUntil.After(time.Now()) {
		remaining := int(time.Until(attempt.LockedUntil).Seconds())
		return true, remaining
	}

	return false, 0
}

func (auth *AuthService) RecordLoginAttempt(identifier string, success bool) {
	// Skip if rate limiting is not configured
	if auth.config.LoginMaxRetries <= 0 || auth.config.LoginTimeout <= 0 {
		return
	}

	auth.loginMutex.Lock()
	defer auth.loginMutex.Unlock()

	attempt, exists := auth.loginAttempts[identifier]
	if !exists {
		attempt = &LoginAttempt{}
		auth.loginAttempts[identifier] = attempt
	}

	attempt.LastAttempt = time.Now()

	if success {
		attempt.FailedAttempts = 0
		attempt.LockedUntil = time.Time{}
		return
	}

	attempt.FailedAttempts++

	if attempt.FailedAttempts >= auth.config.LoginMaxRetries {
		attempt.LockedUntil = time.Now().Add(time.Duration(auth.config.LoginTimeout) * time.Second)
		log.Warn().Str("identifier", identifier).Int("timeout", auth.config.LoginTimeout).Msg("Account locked due to too many failed login attempts")
	}
}
