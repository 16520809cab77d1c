package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gatehouse-labs/gatehouse/internal/config"
	"github.com/gatehouse-labs/gatehouse/internal/controller"
	"github.com/gatehouse-labs/gatehouse/internal/middleware"
	"github.com/gatehouse-labs/gatehouse/internal/model"
	"github.com/gatehouse-labs/gatehouse/internal/pkce"
	"github.com/gatehouse-labs/gatehouse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/go-querystring/query"
	"gotest.tools/v3/assert"
)

const appURL = "http://localhost:3000"

type oauthTestApp struct {
	router  *gin.Engine
	users   *service.UserService
	clients *service.ClientService
	tokens  *service.TokenService
	oauth   *service.OAuthService
}

type authorizeQuery struct {
	ResponseType        string `url:"response_type"`
	ClientID            string `url:"client_id"`
	RedirectURI         string `url:"redirect_uri"`
	CodeChallenge       string `url:"code_challenge"`
	CodeChallengeMethod string `url:"code_challenge_method"`
	Scope               string `url:"scope,omitempty"`
	State               string `url:"state,omitempty"`
}

func setupOAuthApp(t *testing.T) *oauthTestApp {
	t.Helper()

	gin.SetMode(gin.TestMode)

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: ":memory:",
	})
	assert.NilError(t, databaseService.Init())
	db := databaseService.GetDatabase()

	users := service.NewUserService(service.UserServiceConfig{Database: db})
	clients := service.NewClientService(service.ClientServiceConfig{Database: db})

	auth := service.NewAuthService(service.AuthServiceConfig{
		SessionSecret:     "test-secret-test-secret-test-secret!",
		SessionExpiry:     3600,
		SecureCookie:      false,
		LoginTimeout:      300,
		LoginMaxRetries:   0,
		SessionCookieName: config.SessionCookieName,
		Database:          db,
	}, users)
	assert.NilError(t, auth.Init())

	tokens := service.NewTokenService(service.TokenServiceConfig{
		Issuer:            appURL,
		AccessTokenExpiry: 3600,
		Database:          db,
	})
	assert.NilError(t, tokens.Init())

	oauth := service.NewOAuthService(service.OAuthServiceConfig{Database: db}, clients, users, tokens)

	router := gin.New()

	contextMiddleware := middleware.NewContextMiddleware(auth, users)
	assert.NilError(t, contextMiddleware.Init())
	router.Use(contextMiddleware.Middleware())

	apiGroup := router.Group("/api")

	userController := controller.NewUserController(apiGroup, auth, users)
	userController.SetupRoutes()

	oauthController := controller.NewOAuthController(controller.OAuthControllerConfig{
		AppURL: appURL,
		Issuer: appURL,
	}, &router.RouterGroup, oauth, tokens)
	oauthController.SetupRoutes()

	_, err := users.CreateUser(service.CreateUserParams{
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

	return &oauthTestApp{
		router:  router,
		users:   users,
		clients: clients,
		tokens:  tokens,
		oauth:   oauth,
	}
}

func (app *oauthTestApp) login(t *testing.T, username string, password string) *http.Cookie {
	t.Helper()

	body, err := json.Marshal(controller.LoginRequest{Username: username, Password: password})
	assert.NilError(t, err)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/user/login", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	cookies := recorder.Result().Cookies()
	assert.Assert(t, len(cookies) > 0)
	return cookies[0]
}

func (app *oauthTestApp) authorize(t *testing.T, cookie *http.Cookie, q authorizeQuery) *httptest.ResponseRecorder {
	t.Helper()

	values, err := query.Values(q)
	assert.NilError(t, err)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/oauth/authorize?"+values.Encode(), nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	app.router.ServeHTTP(recorder, req)
	return recorder
}

func TestMetadataEndpoint(t *testing.T) {
	app := setupOAuthApp(t)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/.well-known/oauth-authorization-server", nil)
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var metadata map[string]any
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &metadata))
	assert.Equal(t, appURL, metadata["issuer"])
	assert.Equal(t, appURL+"/api/oauth/token", metadata["token_endpoint"])
}

func TestAuthorizationCodeFlow(t *testing.T) {
	app := setupOAuthApp(t)
	cookie := app.login(t, "alice", "correct-horse")

	verifier, err := pkce.GenerateCodeVerifier()
	assert.NilError(t, err)

	recorder := app.authorize(t, cookie, authorizeQuery{
		ResponseType:        "code",
		ClientID:            "webapp",
		RedirectURI:         "https://app.example.com/callback",
		CodeChallenge:       pkce.GenerateCodeChallenge(verifier),
		CodeChallengeMethod: pkce.MethodS256,
		State:               "abc123",
	})

	assert.Equal(t, http.StatusFound, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	assert.NilError(t, err)
	assert.Equal(t, "app.example.com", location.Host)
	assert.Equal(t, "abc123", location.Query().Get("state"))

	code := location.Query().Get("code")
	assert.Assert(t, code != "")

	// Exchange the code
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", "webapp")
	form.Set("code", code)
	form.Set("redirect_uri", "https://app.example.com/callback")
	form.Set("code_verifier", verifier)

	recorder = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var tokenResponse service.TokenResponse
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &tokenResponse))
	assert.Equal(t, "Bearer", tokenResponse.TokenType)
	assert.Assert(t, tokenResponse.AccessToken != "")

	// The token works against userinfo
	recorder = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/oauth/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResponse.AccessToken)
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var userinfo map[string]any
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &userinfo))
	assert.Equal(t, "alice", userinfo["preferred_username"])
	assert.Equal(t, "alice@example.com", userinfo["email"])

	// Replaying the code fails with the uniform grant error
	recorder = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var tokenError map[string]any
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &tokenError))
	assert.Equal(t, "invalid_grant", tokenError["error"])
}

func TestAuthorizeSuspendsAndResumes(t *testing.T) {
	app := setupOAuthApp(t)

	verifier, err := pkce.GenerateCodeVerifier()
	assert.NilError(t, err)

	// Unauthenticated authorize redirects to login with a resumption token
	recorder := app.authorize(t, nil, authorizeQuery{
		ResponseType:        "code",
		ClientID:            "webapp",
		RedirectURI:         "https://app.example.com/callback",
		CodeChallenge:       pkce.GenerateCodeChallenge(verifier),
		CodeChallengeMethod: pkce.MethodS256,
		State:               "resume-state",
	})

	assert.Equal(t, http.StatusFound, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	assert.NilError(t, err)
	assert.Assert(t, strings.HasPrefix(location.Path, "/login"))

	requestID := location.Query().Get("request_id")
	assert.Assert(t, requestID != "")

	// Resuming without a session is refused
	recorder = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/oauth/resume?request_id="+url.QueryEscape(requestID), nil)
	app.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// After logging in the flow completes at the original redirect URI
	cookie := app.login(t, "alice", "correct-horse")

	recorder = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/oauth/resume?request_id="+url.QueryEscape(requestID), nil)
	req.AddCookie(cookie)
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusFound, recorder.Code)

	location, err = url.Parse(recorder.Header().Get("Location"))
	assert.NilError(t, err)
	assert.Equal(t, "app.example.com", location.Host)
	assert.Equal(t, "resume-state", location.Query().Get("state"))
	assert.Assert(t, location.Query().Get("code") != "")

	// The resumption token is single use
	recorder = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/oauth/resume?request_id="+url.QueryEscape(requestID), nil)
	req.AddCookie(cookie)
	app.router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAuthorizeRejectsBeforeRedirect(t *testing.T) {
	app := setupOAuthApp(t)
	cookie := app.login(t, "alice", "correct-horse")

	verifier, err := pkce.GenerateCodeVerifier()
	assert.NilError(t, err)
	challenge := pkce.GenerateCodeChallenge(verifier)

	// Unknown client: JSON error, no redirect
	recorder := app.authorize(t, cookie, authorizeQuery{
		ResponseType:        "code",
		ClientID:            "ghost",
		RedirectURI:         "https://app.example.com/callback",
		CodeChallenge:       challenge,
		CodeChallengeMethod: pkce.MethodS256,
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var body map[string]any
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "invalid_client", body["error"])

	// Unregistered redirect URI: invalid_client as JSON, no redirect
	recorder = app.authorize(t, cookie, authorizeQuery{
		ResponseType:        "code",
		ClientID:            "webapp",
		RedirectURI:         "https://evil.example.com/callback",
		CodeChallenge:       challenge,
		CodeChallengeMethod: pkce.MethodS256,
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	body = map[string]any{}
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "invalid_client", body["error"])

	// Plain challenge method: error delivered via redirect, URI is validated
	recorder = app.authorize(t, cookie, authorizeQuery{
		ResponseType:        "code",
		ClientID:            "webapp",
		RedirectURI:         "https://app.example.com/callback",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "plain",
		State:               "s1",
	})
	assert.Equal(t, http.StatusFound, recorder.Code)

	location, err := url.Parse(recorder.Header().Get("Location"))
	assert.NilError(t, err)
	assert.Equal(t, "app.example.com", location.Host)
	assert.Equal(t, "invalid_request", location.Query().Get("error"))
	assert.Equal(t, "s1", location.Query().Get("state"))
}

func TestClientCredentialsGrant(t *testing.T) {
	app := setupOAuthApp(t)

	_, secret, err := app.clients.CreateClient(service.CreateClientParams{
		ClientID:   "reporting",
		ClientName: "Reporting Service",
		ClientType: model.ClientTypeCredentials,
		Scopes:     []string{"admin"},
	})
	assert.NilError(t, err)

	// client_secret_basic
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("reporting", secret)
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var tokenResponse service.TokenResponse
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &tokenResponse))
	assert.Equal(t, "admin", tokenResponse.Scope)

	// client_secret_post
	form.Set("client_id", "reporting")
	form.Set("client_secret", secret)

	recorder = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)

	// Wrong secret
	form.Set("client_secret", "wrong")

	recorder = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestUnsupportedGrantType(t *testing.T) {
	app := setupOAuthApp(t)

	form := url.Values{}
	form.Set("grant_type", "password")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	app.router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var body map[string]any
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "unsupported_grant_type", body["error"])
}
