package middleware

import (
	"strings"

	"github.com/gatehouse-labs/gatehouse/internal/config"
	"github.com/gatehouse-labs/gatehouse/internal/service"
	"github.com/gatehouse-labs/gatehouse/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AdminScope is the scope a service client needs to call admin endpoints.
const AdminScope = "admin"

type AdminMiddleware struct {
	tokens  *service.TokenService
	clients *service.ClientService
}

func NewAdminMiddleware(tokens *service.TokenService, clients *service.ClientService) *AdminMiddleware {
	return &AdminMiddleware{
		tokens:  tokens,
		clients: clients,
	}
}

func (m *AdminMiddleware) Init() error {
	return nil
}

// Middleware accepts either an admin user session or a bearer token of an
// active service client holding the admin scope. The two verifiers are
// independent strategies composed with OR.
func (m *AdminMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.verifyAdminSession(c) || m.verifyServiceClient(c) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(403, gin.H{
			"status":  403,
			"message": "Forbidden",
		})
	}
}

func (m *AdminMiddleware) verifyAdminSession(c *gin.Context) bool {
	context, err := utils.GetContext(c)
	if err != nil {
		return false
	}
	return context.IsLoggedIn && context.IsAdmin
}

func (m *AdminMiddleware) verifyServiceClient(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}

	claims, err := m.tokens.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		log.Debug().Err(err).Msg("Rejected bearer token on admin endpoint")
		return false
	}

	if claims.TokenUse != service.TokenUseClient {
		return false
	}

	hasScope := false
	for _, scope := range claims.Scopes {
		if scope == AdminScope {
			hasScope = true
			break
		}
	}
	if !hasScope {
		return false
	}

	// The registration may have been disabled since the token was minted
	client, err := m.clients.GetClient(claims.Subject)
	if err != nil || !client.IsActive {
		return false
	}

	c.Set("client", &config.ClientContext{
		ClientID: client.ClientID,
		Scopes:   claims.Scopes,
	})
	return true
}
