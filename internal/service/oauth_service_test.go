package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/model"
	"github.com/gatehouse-labs/gatehouse/internal/pkce"
	"github.com/gatehouse-labs/gatehouse/internal/service"

	"gotest.tools/v3/assert"
	"gorm.io/gorm"
)

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: ":memory:",
	})

	err := databaseService.Init()
	assert.NilError(t, err)

	return databaseService.GetDatabase()
}

type oauthFixture struct {
	db      *gorm.DB
	users   *service.UserService
	clients *service.ClientService
	tokens  *service.TokenService
	oauth   *service.OAuthService
	user    *model.User
}

func setupOAuthService(t *testing.T) *oauthFixture {
	t.Helper()

	db := newTestDatabase(t)

	users := service.NewUserService(service.UserServiceConfig{Database: db})
	clients := service.NewClientService(service.ClientServiceConfig{Database: db})

	tokens := service.NewTokenService(service.TokenServiceConfig{
		Issuer:            "http://localhost:3000",
		AccessTokenExpiry: 3600,
		Database:          db,
	})
	assert.NilError(t, tokens.Init())

	oauth := service.NewOAuthService(service.OAuthServiceConfig{Database: db}, clients, users, tokens)

	user, err := users.CreateUser(service.CreateUserParams{
		Username: "alice",
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "correct-horse",
	})
	assert.NilError(t, err)

	_, _, err = clients.CreateClient(service.CreateClientParams{
		ClientID:     "webapp",
		ClientName:   "Web App",
		ClientType:   model.ClientTypePKCE,
		RedirectURIs: []string{"https://app.example.com/callback"},
	})
	assert.NilError(t, err)

	return &oauthFixture{
		db:      db,
		users:   users,
		clients: clients,
		tokens:  tokens,
		oauth:   oauth,
		user:    user,
	}
}

func authorizeParams(t *testing.T) (service.AuthorizeParams, string) {
	t.Helper()

	verifier, err := pkce.GenerateCodeVerifier()
	assert.NilError(t, err)

	return service.AuthorizeParams{
		ResponseType:        "code",
		ClientID:            "webapp",
		RedirectURI:         "https://app.example.com/callback",
		CodeChallenge:       pkce.GenerateCodeChallenge(verifier),
		CodeChallengeMethod: pkce.MethodS256,
		State:               "xyz",
	}, verifier
}

func TestValidateAuthorizeRequest(t *testing.T) {
	fixture := setupOAuthService(t)
	params, _ := authorizeParams(t)

	// Happy path
	client, err := fixture.oauth.ValidateAuthorizeRequest(params)
	assert.NilError(t, err)
	assert.Equal(t, "webapp", client.ClientID)

	// Unknown client
	bad := params
	bad.ClientID = "ghost"
	_, err = fixture.oauth.ValidateAuthorizeRequest(bad)
	assert.ErrorIs(t, err, service.ErrInvalidClient)

	// Unregistered redirect URI
	bad = params
	bad.RedirectURI = "https://evil.example.com/callback"
	_, err = fixture.oauth.ValidateAuthorizeRequest(bad)
	assert.ErrorIs(t, err, service.ErrRedirectURINotAllowed)

	// Unsupported response type
	bad = params
	bad.ResponseType = "token"
	_, err = fixture.oauth.ValidateAuthorizeRequest(bad)
	assert.ErrorIs(t, err, service.ErrUnsupportedResponseType)

	// Missing challenge
	bad = params
	bad.CodeChallenge = ""
	_, err = fixture.oauth.ValidateAuthorizeRequest(bad)
	assert.ErrorIs(t, err, service.ErrMissingCodeChallenge)

	// Plain method is a downgrade, always rejected
	bad = params
	bad.CodeChallengeMethod = "plain"
	_, err = fixture.oauth.ValidateAuthorizeRequest(bad)
	assert.ErrorIs(t, err, service.ErrUnsupportedChallengeMethod)

	// Disabled client
	inactive := false
	_, err = fixture.clients.UpdateClient("webapp", service.UpdateClientParams{IsActive: &inactive})
	assert.NilError(t, err)
	_, err = fixture.oauth.ValidateAuthorizeRequest(params)
	assert.ErrorIs(t, err, service.ErrInvalidClient)
}

func TestExchange(t *testing.T) {
	fixture := setupOAuthService(t)
	params, verifier := authorizeParams(t)

	code, err := fixture.oauth.CreateAuthorizationCode("webapp", fixture.user.ID, params)
	assert.NilError(t, err)

	response, err := fixture.oauth.Exchange(service.ExchangeParams{
		GrantType:    "authorization_code",
		ClientID:     "webapp",
		Code:         code,
		RedirectURI:  params.RedirectURI,
		CodeVerifier: verifier,
	})
	assert.NilError(t, err)
	assert.Equal(t, "Bearer", response.TokenType)
	assert.Equal(t, fixture.user.ID, response.UserID)
	assert.Equal(t, "alice@example.com", response.Email)
	assert.Assert(t, response.AccessToken != "")

	// The token it minted verifies against the same issuer
	claims, err := fixture.tokens.VerifyToken(response.AccessToken)
	assert.NilError(t, err)
	assert.Equal(t, service.TokenUseUser, claims.TokenUse)
	assert.Equal(t, fixture.user.ID, claims.Subject)

	// Replay of the same code fails
	_, err = fixture.oauth.Exchange(service.ExchangeParams{
		GrantType:    "authorization_code",
		ClientID:     "webapp",
		Code:         code,
		RedirectURI:  params.RedirectURI,
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, service.ErrInvalidGrant)
}

func TestExchangeRejections(t *testing.T) {
	fixture := setupOAuthService(t)

	issue := func() (string, string, service.AuthorizeParams) {
		params, verifier := authorizeParams(t)
		code, err := fixture.oauth.CreateAuthorizationCode("webapp", fixture.user.ID, params)
		assert.NilError(t, err)
		return code, verifier, params
	}

	// Unknown code
	_, err := fixture.oauth.Exchange(service.ExchangeParams{
		GrantType: "authorization_code",
		ClientID:  "webapp",
		Code:      "nonsense",
	})
	assert.ErrorIs(t, err, service.ErrInvalidGrant)

	// Unsupported grant type
	_, err = fixture.oauth.Exchange(service.ExchangeParams{GrantType: "password"})
	assert.ErrorIs(t, err, service.ErrUnsupportedGrantType)

	// Wrong verifier burns the code: the correct verifier no longer works
	code, verifier, params := issue()
	_, err = fixture.oauth.Exchange(service.ExchangeParams{
		GrantType:    "authorization_code",
		ClientID:     "webapp",
		Code:         code,
		RedirectURI:  params.RedirectURI,
		CodeVerifier: "wrong-verifier-wrong-verifier-wrong-verifier",
	})
	assert.ErrorIs(t, err, service.ErrInvalidGrant)

	_, err = fixture.oauth.Exchange(service.ExchangeParams{
		GrantType:    "authorization_code",
		ClientID:     "webapp",
		Code:         code,
		RedirectURI:  params.RedirectURI,
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, service.ErrInvalidGrant)

	// Mismatched client
	code, verifier, params = issue()
	_, err = fixture.oauth.Exchange(service.ExchangeParams{
		GrantType:    "authorization_code",
		ClientID:     "other-app",
		Code:         code,
		RedirectURI:  params.RedirectURI,
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, service.ErrInvalidGrant)

	// Mismatched redirect URI
	code, verifier, params = issue()
	_, err = fixture.oauth.Exchange(service.ExchangeParams{
		GrantType:    "authorization_code",
		ClientID:     "webapp",
		Code:         code,
		RedirectURI:  "https://app.example.com/other",
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, service.ErrInvalidGrant)

	// Expired code
	code, verifier, params = issue()
	err = fixture.db.Model(&model.AuthorizationCode{}).
		Where("code = ?", code).
		Update("expires_at", time.Now().Add(-time.Minute).Unix()).Error
	assert.NilError(t, err)

	_, err = fixture.oauth.Exchange(service.ExchangeParams{
		GrantType:    "authorization_code",
		ClientID:     "webapp",
		Code:         code,
		RedirectURI:  params.RedirectURI,
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, service.ErrInvalidGrant)

	// Disabled user
	code, verifier, params = issue()
	inactive := false
	_, err = fixture.users.UpdateUser(fixture.user.ID, service.UpdateUserParams{IsActive: &inactive})
	assert.NilError(t, err)

	_, err = fixture.oauth.Exchange(service.ExchangeParams{
		GrantType:    "authorization_code",
		ClientID:     "webapp",
		Code:         code,
		RedirectURI:  params.RedirectURI,
		CodeVerifier: verifier,
	})
	assert.ErrorIs(t, err, service.ErrInvalidGrant)
}

func TestExchangeConcurrentRedemption(t *testing.T) {
	fixture := setupOAuthService(t)
	params, verifier := authorizeParams(t)

	code, err := fixture.oauth.CreateAuthorizationCode("webapp", fixture.user.ID, params)
	assert.NilError(t, err)

	exchange := service.ExchangeParams{
		GrantType:    "authorization_code",
		ClientID:     "webapp",
		Code:         code,
		RedirectURI:  params.RedirectURI,
		CodeVerifier: verifier,
	}

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fixture.oauth.Exchange(exchange)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, service.ErrInvalidGrant)
		}
	}

	// Exactly one of the racing redemptions may win
	assert.Equal(t, 1, succeeded)
}

func TestClientCredentials(t *testing.T) {
	fixture := setupOAuthService(t)

	_, secret, err := fixture.clients.CreateClient(service.CreateClientParams{
		ClientID:   "reporting",
		ClientName: "Reporting Service",
		ClientType: model.ClientTypeCredentials,
		Scopes:     []string{"admin", "read:users"},
	})
	assert.NilError(t, err)
	assert.Assert(t, secret != "")

	response, err := fixture.oauth.ClientCredentials("reporting", secret)
	assert.NilError(t, err)
	assert.Equal(t, "Bearer", response.TokenType)
	assert.Equal(t, "admin read:users", response.Scope)

	claims, err := fixture.tokens.VerifyToken(response.AccessToken)
	assert.NilError(t, err)
	assert.Equal(t, service.TokenUseClient, claims.TokenUse)
	assert.Equal(t, "reporting", claims.Subject)
	assert.DeepEqual(t, []string{"admin", "read:users"}, claims.Scopes)

	// Wrong secret
	_, err = fixture.oauth.ClientCredentials("reporting", "not-the-secret")
	assert.ErrorIs(t, err, service.ErrInvalidClient)

	// PKCE clients have no secret and can never use this grant
	_, err = fixture.oauth.ClientCredentials("webapp", "")
	assert.ErrorIs(t, err, service.ErrInvalidClient)
}

func TestAuthRequestSingleUse(t *testing.T) {
	fixture := setupOAuthService(t)
	params, _ := authorizeParams(t)

	id, err := fixture.oauth.CreateAuthRequest(params)
	assert.NilError(t, err)

	request, err := fixture.oauth.ConsumeAuthRequest(id)
	assert.NilError(t, err)
	assert.Equal(t, "webapp", request.ClientID)
	assert.Equal(t, params.CodeChallenge, request.CodeChallenge)
	assert.Equal(t, "xyz", request.State)

	// A resumption token only works once
	_, err = fixture.oauth.ConsumeAuthRequest(id)
	assert.ErrorIs(t, err, service.ErrAuthRequestNotFound)

	// An expired token is refused even if the row still exists
	id, err = fixture.oauth.CreateAuthRequest(params)
	assert.NilError(t, err)

	err = fixture.db.Model(&model.AuthRequest{}).
		Where("id = ?", id).
		Update("expires_at", time.Now().Add(-time.Minute).Unix()).Error
	assert.NilError(t, err)

	_, err = fixture.oauth.ConsumeAuthRequest(id)
	assert.ErrorIs(t, err, service.ErrAuthRequestNotFound)
}

func TestCleanupExpired(t *testing.T) {
	fixture := setupOAuthService(t)
	params, _ := authorizeParams(t)

	code, err := fixture.oauth.CreateAuthorizationCode("webapp", fixture.user.ID, params)
	assert.NilError(t, err)

	id, err := fixture.oauth.CreateAuthRequest(params)
	assert.NilError(t, err)

	past := time.Now().Add(-time.Hour).Unix()
	assert.NilError(t, fixture.db.Model(&model.AuthorizationCode{}).Where("code = ?", code).Update("expires_at", past).Error)
	assert.NilError(t, fixture.db.Model(&model.AuthRequest{}).Where("id = ?", id).Update("expires_at", past).Error)

	assert.NilError(t, fixture.oauth.CleanupExpired(context.Background()))

	var codes int64
	assert.NilError(t, fixture.db.Model(&model.AuthorizationCode{}).Count(&codes).Error)
	assert.Equal(t, int64(0), codes)

	var requests int64
	assert.NilError(t, fixture.db.Model(&model.AuthRequest{}).Count(&requests).Error)
	assert.Equal(t, int64(0), requests)
}
