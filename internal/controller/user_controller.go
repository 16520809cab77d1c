package controller

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/service"
	"github.com/gatehouse-labs/gatehouse/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TotpRequest struct {
	Code string `json:"code"`
}

type UserController struct {
	router *gin.RouterGroup
	auth   *service.AuthService
	users  *service.UserService
}

func NewUserController(router *gin.RouterGroup, auth *service.AuthService, users *service.UserService) *UserController {
	return &UserController{
		router: router,
		auth:   auth,
		users:  users,
	}
}

func (controller *UserController) SetupRoutes() {
	userGroup := controller.router.Group("/user")
	userGroup.POST("/login", controller.loginHandler)
	userGroup.POST("/logout", controller.logoutHandler)
	userGroup.POST("/totp", controller.totpHandler)
}

func (controller *UserController) loginHandler(c *gin.Context) {
	var req LoginRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	log.Debug().Str("username", req.Username).Msg("Login attempt")

	isLocked, remaining := controller.auth.IsAccountLocked(req.Username)

	if isLocked {
		log.Warn().Str("username", req.Username).Msg("Account is locked due to too many failed login attempts")
		c.Writer.Header().Add("x-gatehouse-lock-locked", "true")
		c.Writer.Header().Add("x-gatehouse-lock-reset", time.Now().Add(time.Duration(remaining)*time.Second).Format(time.RFC3339))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"status":  429,
			"message": fmt.Sprintf("Too many failed login attempts. Try again in %d seconds", remaining),
		})
		return
	}

	user, err := controller.auth.ValidateCredentials(req.Username, req.Password)

	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			log.Warn().Str("username", req.Username).Msg("Invalid credentials")
			controller.auth.RecordLoginAttempt(req.Username, false)
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  401,
				"message": "Unauthorized",
			})
			return
		}

		log.Error().Err(err).Msg("Failed to validate credentials")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	log.Info().Str("username", req.Username).Msg("Login successful")

	controller.auth.RecordLoginAttempt(req.Username, true)

	totpPending := user.TotpSecret != ""

	_, err = controller.auth.CreateSession(c, user, totpPending)

	if err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	if totpPending {
		log.Debug().Str("username", req.Username).Msg("User has TOTP enabled, requiring TOTP verification")
		c.JSON(http.StatusOK, gin.H{
			"status":      200,
			"message":     "TOTP required",
			"totpPending": true,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "Login successful",
	})
}

func (controller *UserController) logoutHandler(c *gin.Context) {
	log.Debug().Msg("Logout request received")

	controller.auth.DeleteSession(c)

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "Logout successful",
	})
}

func (controller *UserController) totpHandler(c *gin.Context) {
	var req TotpRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	context, err := utils.GetContext(c)

	if err != nil || !context.TotpPending {
		log.Warn().Msg("TOTP attempt without a pending TOTP session")
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	log.Debug().Str("username", context.Username).Msg("TOTP verification attempt")

	isLocked, remaining := controller.auth.IsAccountLocked(context.Username)

	if isLocked {
		log.Warn().Str("username", context.Username).Msg("Account is locked due to too many failed TOTP attempts")
		c.Writer.Header().Add("x-gatehouse-lock-locked", "true")
		c.Writer.Header().Add("x-gatehouse-lock-reset", time.Now().Add(time.Duration(remaining)*time.Second).Format(time.RFC3339))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"status":  429,
			"message": fmt.Sprintf("Too many failed TOTP attempts. Try again in %d seconds", remaining),
		})
		return
	}

	user, err := controller.users.GetUser(context.UserID)

	if err != nil {
		log.Error().Err(err).Msg("Failed to get user")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	ok := totp.Validate(req.Code, user.TotpSecret)

	if !ok {
		log.Warn().Str("username", context.Username).Msg("Invalid TOTP code")
		controller.auth.RecordLoginAttempt(context.Username, false)
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	log.Info().Str("username", context.Username).Msg("TOTP verification successful")

	controller.auth.RecordLoginAttempt(context.Username, true)

	session, err := controller.auth.GetSession(c)

	if err != nil {
		log.Error().Err(err).Msg("Failed to get session")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	err = controller.auth.CompleteTotp(session)

	if err != nil {
		log.Error().Err(err).Msg("Failed to complete TOTP step")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "Login successful",
	})
}
