package middleware

import (
	"github.com/gatehouse-labs/gatehouse/internal/config"
	"github.com/gatehouse-labs/gatehouse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ContextMiddleware struct {
	auth  *service.AuthService
	users *service.UserService
}

func NewContextMiddleware(auth *service.AuthService, users *service.UserService) *ContextMiddleware {
	return &ContextMiddleware{
		auth:  auth,
		users: users,
	}
}

func (m *ContextMiddleware) Init() error {
	return nil
}

// Middleware resolves the session cookie to a UserContext for every
// request. Requests without a valid session proceed anonymous; access
// decisions happen downstream.
func (m *ContextMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := m.auth.GetSession(c)
		if err != nil {
			c.Next()
			return
		}

		user, err := m.users.GetUser(session.UserID)
		if err != nil || !user.IsActive {
			m.auth.DeleteSession(c)
			c.Next()
			return
		}

		if session.TotpPending {
			c.Set("context", &config.UserContext{
				UserID:      user.ID,
				Username:    user.Username,
				Name:        user.Name,
				Email:       user.Email,
				TotpPending: true,
				TotpEnabled: true,
			})
			c.Next()
			return
		}

		roles, err := m.users.GetUserRoles(user.ID)
		if err != nil {
			log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to resolve user roles")
			c.Next()
			return
		}

		c.Set("context", &config.UserContext{
			UserID:      user.ID,
			Username:    user.Username,
			Name:        user.Name,
			Email:       user.Email,
			Roles:       roles,
			IsLoggedIn:  true,
			IsAdmin:     user.IsAdmin,
			TotpEnabled: user.TotpSecret != "",
		})
		c.Next()
	}
}
