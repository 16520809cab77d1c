package controller

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gatehouse-labs/gatehouse/internal/service"
	"github.com/gatehouse-labs/gatehouse/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type OAuthControllerConfig struct {
	AppURL string
	Issuer string
}

type OAuthController struct {
	config OAuthControllerConfig
	router *gin.RouterGroup
	oauth  *service.OAuthService
	tokens *service.TokenService
}

type TokenRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type"`
	ClientID     string `form:"client_id" json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
	Code         string `form:"code" json:"code"`
	RedirectURI  string `form:"redirect_uri" json:"redirect_uri"`
	CodeVerifier string `form:"code_verifier" json:"code_verifier"`
}

func NewOAuthController(config OAuthControllerConfig, router *gin.RouterGroup, oauth *service.OAuthService, tokens *service.TokenService) *OAuthController {
	return &OAuthController{
		config: config,
		router: router,
		oauth:  oauth,
		tokens: tokens,
	}
}

func (controller *OAuthController) SetupRoutes() {
	controller.router.GET("/.well-known/oauth-authorization-server", controller.metadataHandler)

	oauthGroup := controller.router.Group("/api/oauth")
	oauthGroup.GET("/authorize", controller.authorizeHandler)
	oauthGroup.GET("/resume", controller.resumeHandler)
	oauthGroup.POST("/token", controller.tokenHandler)
	oauthGroup.GET("/userinfo", controller.userinfoHandler)
	oauthGroup.GET("/jwks", controller.jwksHandler)
}

func (controller *OAuthController) metadataHandler(c *gin.Context) {
	baseURL := strings.TrimSuffix(controller.config.AppURL, "/")

	metadata := map[string]any{
		"issuer":                                controller.config.Issuer,
		"authorization_endpoint":                fmt.Sprintf("%s/api/oauth/authorize", baseURL),
		"token_endpoint":                        fmt.Sprintf("%s/api/oauth/token", baseURL),
		"userinfo_endpoint":                     fmt.Sprintf("%s/api/oauth/userinfo", baseURL),
		"jwks_uri":                              fmt.Sprintf("%s/api/oauth/jwks", baseURL),
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "client_credentials"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
		"code_challenge_methods_supported":      []string{"S256"},
	}

	c.JSON(http.StatusOK, metadata)
}

func (controller *OAuthController) authorizeHandler(c *gin.Context) {
	params := service.AuthorizeParams{
		ResponseType:        c.Query("response_type"),
		ClientID:            c.Query("client_id"),
		RedirectURI:         c.Query("redirect_uri"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
		Scope:               c.Query("scope"),
		State:               c.Query("state"),
	}

	// Return JSON errors until the redirect URI has been validated; an
	// unvalidated redirect target must never receive anything
	if params.ClientID == "" || params.RedirectURI == "" || params.ResponseType == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing required parameters",
		})
		return
	}

	client, err := controller.oauth.ValidateAuthorizeRequest(params)

	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidClient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_client",
			"error_description": "Unknown or inactive client",
		})
		return
	case errors.Is(err, service.ErrRedirectURINotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_client",
			"error_description": "Redirect URI is not registered for this client",
		})
		return
	case errors.Is(err, service.ErrUnsupportedResponseType):
		// The redirect URI is validated from here on
		controller.redirectError(c, params.RedirectURI, params.State, "unsupported_response_type", "Unsupported response_type")
		return
	case errors.Is(err, service.ErrMissingCodeChallenge):
		controller.redirectError(c, params.RedirectURI, params.State, "invalid_request", "Missing code_challenge")
		return
	case errors.Is(err, service.ErrUnsupportedChallengeMethod):
		controller.redirectError(c, params.RedirectURI, params.State, "invalid_request", "Only the S256 code_challenge_method is supported")
		return
	default:
		log.Error().Err(err).Msg("Failed to validate authorize request")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "server_error",
		})
		return
	}

	userContext, err := utils.GetContext(c)

	// Suspend the flow across login (and any TOTP step) via a persisted
	// resumption token; no authorize state is kept in memory
	if err != nil || !userContext.IsLoggedIn || userContext.TotpPending {
		requestID, err := controller.oauth.CreateAuthRequest(params)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create auth request")
			controller.redirectError(c, params.RedirectURI, params.State, "server_error", "Internal server error")
			return
		}

		loginURL := fmt.Sprintf("%s/login?request_id=%s", strings.TrimSuffix(controller.config.AppURL, "/"), url.QueryEscape(requestID))
		c.Redirect(http.StatusFound, loginURL)
		return
	}

	controller.issueCode(c, client.ClientID, userContext.UserID, params)
}

// resumeHandler completes a suspended authorize attempt after the user has
// authenticated. The resumption token is single use.
func (controller *OAuthController) resumeHandler(c *gin.Context) {
	requestID := c.Query("request_id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Missing request_id",
		})
		return
	}

	userContext, err := utils.GetContext(c)
	if err != nil || !userContext.IsLoggedIn || userContext.TotpPending {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "access_denied",
			"error_description": "Authentication required",
		})
		return
	}

	request, err := controller.oauth.ConsumeAuthRequest(requestID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "Unknown or expired request_id",
		})
		return
	}

	params := service.AuthorizeParams{
		ResponseType:        "code",
		ClientID:            request.ClientID,
		RedirectURI:         request.RedirectURI,
		CodeChallenge:       request.CodeChallenge,
		CodeChallengeMethod: request.CodeChallengeMethod,
		Scope:               request.Scope,
		State:               request.State,
	}

	// The client may have been disabled while the user was logging in
	client, err := controller.oauth.ValidateAuthorizeRequest(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_client",
			"error_description": "Unknown or inactive client",
		})
		return
	}

	controller.issueCode(c, client.ClientID, userContext.UserID, params)
}

func (controller *OAuthController) issueCode(c *gin.Context, clientID string, userID string, params service.AuthorizeParams) {
	code, err := controller.oauth.CreateAuthorizationCode(clientID, userID, params)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create authorization code")
		controller.redirectError(c, params.RedirectURI, params.State, "server_error", "Internal server error")
		return
	}

	redirectURL, err := url.Parse(params.RedirectURI)
	if err != nil {
		controller.redirectError(c, params.RedirectURI, params.State, "invalid_request", "Invalid redirect_uri")
		return
	}

	query := redirectURL.Query()
	query.Set("code", code)
	if params.State != "" {
		query.Set("state", params.State)
	}
	redirectURL.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, redirectURL.String())
}

func (controller *OAuthController) tokenHandler(c *gin.Context) {
	var req TokenRequest

	if err := c.ShouldBind(&req); err != nil {
		controller.tokenError(c, http.StatusBadRequest, "invalid_request", "Malformed token request")
		return
	}

	switch req.GrantType {
	case "authorization_code":
		response, err := controller.oauth.Exchange(service.ExchangeParams{
			GrantType:    req.GrantType,
			ClientID:     req.ClientID,
			Code:         req.Code,
			RedirectURI:  req.RedirectURI,
			CodeVerifier: req.CodeVerifier,
		})
		if err != nil {
			// All grant failures collapse to one message; the reason is
			// only logged server side
			if errors.Is(err, service.ErrInvalidGrant) {
				log.Debug().Err(err).Str("client_id", req.ClientID).Msg("Rejected token exchange")
				controller.tokenError(c, http.StatusBadRequest, "invalid_grant", "Invalid or expired authorization code")
				return
			}
			log.Error().Err(err).Msg("Token exchange failed")
			controller.tokenError(c, http.StatusInternalServerError, "server_error", "Internal server error")
			return
		}

		c.JSON(http.StatusOK, response)
	case "client_credentials":
		clientID, clientSecret, err := controller.getClientCredentials(c, req)
		if err != nil {
			controller.tokenError(c, http.StatusUnauthorized, "invalid_client", "Invalid client credentials")
			return
		}

		response, err := controller.oauth.ClientCredentials(clientID, clientSecret)
		if err != nil {
			if errors.Is(err, service.ErrInvalidClient) {
				controller.tokenError(c, http.StatusUnauthorized, "invalid_client", "Invalid client credentials")
				return
			}
			log.Error().Err(err).Msg("Client credentials grant failed")
			controller.tokenError(c, http.StatusInternalServerError, "server_error", "Internal server error")
			return
		}

		c.JSON(http.StatusOK, response)
	default:
		controller.tokenError(c, http.StatusBadRequest, "unsupported_grant_type", "Unsupported grant_type")
	}
}

func (controller *OAuthController) userinfoHandler(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_token",
			"error_description": "Missing access token",
		})
		return
	}

	claims, err := controller.tokens.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil || claims.TokenUse != service.TokenUseUser {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_token",
			"error_description": "Invalid or expired access token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sub":                claims.Subject,
		"email":              claims.Email,
		"preferred_username": claims.Username,
		"roles":              claims.Roles,
		"is_admin":           claims.IsAdmin,
	})
}

func (controller *OAuthController) jwksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, controller.tokens.GetJWKS())
}

// Helper functions

func (controller *OAuthController) redirectError(c *gin.Context, redirectURI string, state string, errorCode string, errorDescription string) {
	redirectURL, err := url.Parse(redirectURI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errorCode,
			"error_description": errorDescription,
		})
		return
	}

	query := redirectURL.Query()
	query.Set("error", errorCode)
	query.Set("error_description", errorDescription)
	if state != "" {
		query.Set("state", state)
	}
	redirectURL.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, redirectURL.String())
}

func (controller *OAuthController) tokenError(c *gin.Context, status int, errorCode string, errorDescription string) {
	c.JSON(status, gin.H{
		"error":             errorCode,
		"error_description": errorDescription,
	})
}

func (controller *OAuthController) getClientCredentials(c *gin.Context, req TokenRequest) (string, string, error) {
	// Try Basic Auth first (client_secret_basic)
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Basic ") {
		encoded := strings.TrimPrefix(authHeader, "Basic ")
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err == nil {
			parts := strings.SplitN(string(decoded), ":", 2)
			if len(parts) == 2 {
				return parts[0], parts[1], nil
			}
		}
	}

	// Fall back to body parameters (client_secret_post)
	if req.ClientID != "" && req.ClientSecret != "" {
		return req.ClientID, req.ClientSecret, nil
	}

	// Credentials via query parameters are never accepted as they end up
	// in access logs, browser history, and referrer headers
	return "", "", fmt.Errorf("client credentials not found")
}
