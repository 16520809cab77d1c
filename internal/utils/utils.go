package utils

import (
	"errors"

	"github.com/gatehouse-labs/gatehouse/internal/config"

	"github.com/gin-gonic/gin"
)

var ErrNoContext = errors.New("no context found")

// GetContext returns the UserContext set by the context middleware.
func GetContext(c *gin.Context) (config.UserContext, error) {
	value, exists := c.Get("context")
	if !exists {
		return config.UserContext{}, ErrNoContext
	}

	context, ok := value.(*config.UserContext)
	if !ok {
		return config.UserContext{}, ErrNoContext
	}

	return *context, nil
}

// GetClientContext returns the ClientContext set by the admin middleware
// when the caller is a service client.
func GetClientContext(c *gin.Context) (config.ClientContext, error) {
	value, exists := c.Get("client")
	if !exists {
		return config.ClientContext{}, ErrNoContext
	}

	context, ok := value.(*config.ClientContext)
	if !ok {
		return config.ClientContext{}, ErrNoContext
	}

	return *context, nil
}

// Capitalize returns the string with its first letter upper-cased.
func Capitalize(s string) string {
	if len(s) == 0 {
		return ""
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c = c - 'a' + 'A'
	}
	return string(c) + s[1:]
}
