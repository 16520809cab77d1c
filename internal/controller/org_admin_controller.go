package controller

import (
	"errors"
	"net/http"

	"github.com/gatehouse-labs/gatehouse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type OrganizationRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateBusinessUnitRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID string `json:"parentId"`
}

type UpdateBusinessUnitRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parentId"`
}

type OrgAdminController struct {
	router *gin.RouterGroup
	orgs   *service.OrgService
}

func NewOrgAdminController(router *gin.RouterGroup, orgs *service.OrgService) *OrgAdminController {
	return &OrgAdminController{
		router: router,
		orgs:   orgs,
	}
}

func (controller *OrgAdminController) SetupRoutes() {
	orgGroup := controller.router.Group("/orgs")
	orgGroup.GET("", controller.listHandler)
	orgGroup.POST("", controller.createHandler)
	orgGroup.GET("/:id", controller.getHandler)
	orgGroup.PUT("/:id", controller.renameHandler)
	orgGroup.DELETE("/:id", controller.deleteHandler)
	orgGroup.GET("/:id/units", controller.listUnitsHandler)
	orgGroup.POST("/:id/units", controller.createUnitHandler)
	orgGroup.PUT("/:id/units/:unitId", controller.updateUnitHandler)
	orgGroup.DELETE("/:id/units/:unitId", controller.deleteUnitHandler)
}

func (controller *OrgAdminController) listHandler(c *gin.Context) {
	orgs, err := controller.orgs.ListOrganizations()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list organizations")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, orgs)
}

func (controller *OrgAdminController) createHandler(c *gin.Context) {
	var req OrganizationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	org, err := controller.orgs.CreateOrganization(req.Name)
	if err != nil {
		if errors.Is(err, service.ErrOrganizationNameTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"status":  409,
				"message": "Organization name already taken",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to create organization")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (controller *OrgAdminController) getHandler(c *gin.Context) {
	org, err := controller.orgs.GetOrganization(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrOrganizationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to get organization")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, org)
}

func (controller *OrgAdminController) renameHandler(c *gin.Context) {
	var req OrganizationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	org, err := controller.orgs.RenameOrganization(c.Param("id"), req.Name)
	if err != nil {
		if errors.Is(err, service.ErrOrganizationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to rename organization")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, org)
}

func (controller *OrgAdminController) deleteHandler(c *gin.Context) {
	err := controller.orgs.DeleteOrganization(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrganizationNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
		case errors.Is(err, service.ErrOrganizationNotEmpty):
			c.JSON(http.StatusConflict, gin.H{
				"status":  409,
				"message": "Organization still has business units or members",
			})
		default:
			log.Error().Err(err).Msg("Failed to delete organization")
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  500,
				"message": "Internal Server Error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "Organization deleted",
	})
}

func (controller *OrgAdminController) listUnitsHandler(c *gin.Context) {
	if _, err := controller.orgs.GetOrganization(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  404,
			"message": "Not Found",
		})
		return
	}

	units, err := controller.orgs.ListBusinessUnits(c.Param("id"))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list business units")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, units)
}

func (controller *OrgAdminController) createUnitHandler(c *gin.Context) {
	var req CreateBusinessUnitRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	unit, err := controller.orgs.CreateBusinessUnit(c.Param("id"), req.ParentID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrganizationNotFound), errors.Is(err, service.ErrBusinessUnitNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": err.Error(),
			})
		case errors.Is(err, service.ErrParentUnitMismatch):
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  400,
				"message": "Parent unit belongs to a different organization",
			})
		default:
			log.Error().Err(err).Msg("Failed to create business unit")
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  500,
				"message": "Internal Server Error",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, unit)
}

func (controller *OrgAdminController) updateUnitHandler(c *gin.Context) {
	var req UpdateBusinessUnitRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	unit, err := controller.orgs.UpdateBusinessUnit(c.Param("unitId"), service.UpdateBusinessUnitParams{
		Name:     req.Name,
		ParentID: req.ParentID,
	})

	if err != nil {
		switch {
		case errors.Is(err, service.ErrBusinessUnitNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
		case errors.Is(err, service.ErrParentUnitMismatch):
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  400,
				"message": "Parent unit belongs to a different organization",
			})
		default:
			log.Error().Err(err).Msg("Failed to update business unit")
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  500,
				"message": "Internal Server Error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, unit)
}

func (controller *OrgAdminController) deleteUnitHandler(c *gin.Context) {
	err := controller.orgs.DeleteBusinessUnit(c.Param("unitId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBusinessUnitNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
		case errors.Is(err, service.ErrBusinessUnitNotEmpty):
			c.JSON(http.StatusConflict, gin.H{
				"status":  409,
				"message": "Business unit still has children or members",
			})
		default:
			log.Error().Err(err).Msg("Failed to delete business unit")
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  500,
				"message": "Internal Server Error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "Business unit deleted",
	})
}
