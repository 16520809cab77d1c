package middleware

import (
	"strings"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Routes that only produce monitoring noise are demoted to debug.
var quietRoutePrefixes = []string{
	"GET /api/health",
	"HEAD /api/health",
	"GET /favicon.ico",
}

type ZerologMiddleware struct{}

func NewZerologMiddleware() *ZerologMiddleware {
	return &ZerologMiddleware{}
}

func (m *ZerologMiddleware) Init() error {
	return nil
}

func (m *ZerologMiddleware) quiet(route string) bool {
	for _, prefix := range quietRoutePrefixes {
		if strings.HasPrefix(route, prefix) {
			return true
		}
	}
	return false
}

// principal tags the request log with who acted: the session user, the
// service client behind a bearer token, or nothing for anonymous calls.
func (m *ZerologMiddleware) principal(c *gin.Context, event *zerolog.Event) *zerolog.Event {
	if context, err := utils.GetContext(c); err == nil && context.IsLoggedIn {
		return event.Str("user", context.Username)
	}
	if client, err := utils.GetClientContext(c); err == nil {
		return event.Str("client", client.ClientID)
	}
	return event
}

func (m *ZerologMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tStart := time.Now()

		c.Next()

		code := c.Writer.Status()
		method := c.Request.Method
		path := c.Request.URL.Path
		clientIP := c.ClientIP()
		latency := time.Since(tStart).String()

		var event *zerolog.Event
		switch {
		case m.quiet(method + " " + path):
			event = log.Debug()
		case code >= 400:
			event = log.Error()
		case code >= 300:
			event = log.Warn()
		default:
			event = log.Info()
		}

		m.principal(c, event).Str("method", method).Str("path", path).Str("clientIp", clientIP).Int("status", code).Str("latency", latency).Msg("Request")
	}
}
