package controller

import (
	"errors"
	"net/http"

	"github.com/gatehouse-labs/gatehouse/internal/model"
	"github.com/gatehouse-labs/gatehouse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type CreateClientRequest struct {
	ClientID     string   `json:"clientId" binding:"required"`
	ClientName   string   `json:"clientName" binding:"required"`
	ClientType   string   `json:"clientType" binding:"required,oneof=oauth_pkce client_credentials"`
	RedirectURIs []string `json:"redirectUris"`
	Scopes       []string `json:"scopes"`
}

type UpdateClientRequest struct {
	ClientName   *string  `json:"clientName"`
	RedirectURIs []string `json:"redirectUris"`
	Scopes       []string `json:"scopes"`
	IsActive     *bool    `json:"isActive"`
}

type ClientResponse struct {
	ClientID     string   `json:"clientId"`
	ClientName   string   `json:"clientName"`
	ClientType   string   `json:"clientType"`
	RedirectURIs []string `json:"redirectUris"`
	Scopes       []string `json:"scopes"`
	IsActive     bool     `json:"isActive"`
}

type ClientAdminController struct {
	router  *gin.RouterGroup
	clients *service.ClientService
}

func NewClientAdminController(router *gin.RouterGroup, clients *service.ClientService) *ClientAdminController {
	return &ClientAdminController{
		router:  router,
		clients: clients,
	}
}

func (controller *ClientAdminController) SetupRoutes() {
	clientGroup := controller.router.Group("/clients")
	clientGroup.GET("", controller.listHandler)
	clientGroup.POST("", controller.createHandler)
	clientGroup.GET("/:id", controller.getHandler)
	clientGroup.PUT("/:id", controller.updateHandler)
	clientGroup.POST("/:id/rotate-secret", controller.rotateSecretHandler)
}

func (controller *ClientAdminController) clientResponse(client *model.Client) ClientResponse {
	redirectURIs := controller.clients.ClientRedirectURIs(client)
	if redirectURIs == nil {
		redirectURIs = []string{}
	}

	scopes := controller.clients.ClientScopes(client)
	if scopes == nil {
		scopes = []string{}
	}

	return ClientResponse{
		ClientID:     client.ClientID,
		ClientName:   client.ClientName,
		ClientType:   client.ClientType,
		RedirectURIs: redirectURIs,
		Scopes:       scopes,
		IsActive:     client.IsActive,
	}
}

func (controller *ClientAdminController) listHandler(c *gin.Context) {
	clients, err := controller.clients.ListClients()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list clients")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	response := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		response = append(response, controller.clientResponse(&clients[i]))
	}

	c.JSON(http.StatusOK, response)
}

func (controller *ClientAdminController) createHandler(c *gin.Context) {
	var req CreateClientRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	if req.ClientType == model.ClientTypePKCE && len(req.RedirectURIs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "PKCE clients require at least one redirect URI",
		})
		return
	}

	client, secret, err := controller.clients.CreateClient(service.CreateClientParams{
		ClientID:     req.ClientID,
		ClientName:   req.ClientName,
		ClientType:   req.ClientType,
		RedirectURIs: req.RedirectURIs,
		Scopes:       req.Scopes,
	})

	if err != nil {
		if errors.Is(err, service.ErrClientIDTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"status":  409,
				"message": "Client ID already registered",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to create client")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	response := gin.H{
		"client": controller.clientResponse(client),
	}

	// The plaintext secret is shown exactly once, at creation time.
	if secret != "" {
		response["clientSecret"] = secret
	}

	c.JSON(http.StatusCreated, response)
}

func (controller *ClientAdminController) getHandler(c *gin.Context) {
	client, err := controller.clients.GetClient(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to get client")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, controller.clientResponse(client))
}

func (controller *ClientAdminController) updateHandler(c *gin.Context) {
	var req UpdateClientRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	client, err := controller.clients.UpdateClient(c.Param("id"), service.UpdateClientParams{
		ClientName:   req.ClientName,
		RedirectURIs: req.RedirectURIs,
		Scopes:       req.Scopes,
		IsActive:     req.IsActive,
	})

	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to update client")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, controller.clientResponse(client))
}

func (controller *ClientAdminController) rotateSecretHandler(c *gin.Context) {
	secret, err := controller.clients.RotateSecret(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to rotate client secret")
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Client has no secret to rotate",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       200,
		"message":      "Secret rotated",
		"clientSecret": secret,
	})
}
