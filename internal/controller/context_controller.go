package controller

import (
	"net/http"

	"github.com/gatehouse-labs/gatehouse/internal/utils"

	"github.com/gin-gonic/gin"
)

type ContextControllerConfig struct {
	Title  string
	AppURL string
}

type ContextController struct {
	config ContextControllerConfig
	router *gin.RouterGroup
}

func NewContextController(config ContextControllerConfig, router *gin.RouterGroup) *ContextController {
	return &ContextController{
		config: config,
		router: router,
	}
}

func (controller *ContextController) SetupRoutes() {
	controller.router.GET("/context", controller.contextHandler)
	controller.router.GET("/app", controller.appHandler)
}

func (controller *ContextController) contextHandler(c *gin.Context) {
	context, err := utils.GetContext(c)

	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"isLoggedIn": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isLoggedIn":  context.IsLoggedIn,
		"username":    context.Username,
		"name":        context.Name,
		"email":       context.Email,
		"roles":       context.Roles,
		"isAdmin":     context.IsAdmin,
		"totpPending": context.TotpPending,
		"totpEnabled": context.TotpEnabled,
	})
}

func (controller *ContextController) appHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"title":  controller.config.Title,
		"appUrl": controller.config.AppURL,
	})
}
