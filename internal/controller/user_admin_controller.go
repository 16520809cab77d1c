package controller

import (
	"errors"
	"net/http"

	"github.com/gatehouse-labs/gatehouse/internal/model"
	"github.com/gatehouse-labs/gatehouse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type CreateUserRequest struct {
	Username       string `json:"username" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Name           string `json:"name"`
	Password       string `json:"password" binding:"required,min=8"`
	IsAdmin        bool   `json:"isAdmin"`
	OrganizationID string `json:"organizationId"`
	BusinessUnitID string `json:"businessUnitId"`
}

type UpdateUserRequest struct {
	Email          *string `json:"email" binding:"omitempty,email"`
	Name           *string `json:"name"`
	Password       *string `json:"password" binding:"omitempty,min=8"`
	IsAdmin        *bool   `json:"isAdmin"`
	IsActive       *bool   `json:"isActive"`
	OrganizationID *string `json:"organizationId"`
	BusinessUnitID *string `json:"businessUnitId"`
}

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type AssignRoleRequest struct {
	RoleID string `json:"roleId" binding:"required"`
}

type UserResponse struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	IsAdmin        bool     `json:"isAdmin"`
	IsActive       bool     `json:"isActive"`
	OrganizationID string   `json:"organizationId,omitempty"`
	BusinessUnitID string   `json:"businessUnitId,omitempty"`
	Roles          []string `json:"roles"`
}

type UserAdminController struct {
	router *gin.RouterGroup
	users  *service.UserService
}

func NewUserAdminController(router *gin.RouterGroup, users *service.UserService) *UserAdminController {
	return &UserAdminController{
		router: router,
		users:  users,
	}
}

func (controller *UserAdminController) SetupRoutes() {
	userGroup := controller.router.Group("/users")
	userGroup.GET("", controller.listHandler)
	userGroup.POST("", controller.createHandler)
	userGroup.GET("/:id", controller.getHandler)
	userGroup.PUT("/:id", controller.updateHandler)
	userGroup.DELETE("/:id", controller.deleteHandler)
	userGroup.POST("/:id/roles", controller.assignRoleHandler)
	userGroup.DELETE("/:id/roles/:roleId", controller.removeRoleHandler)

	roleGroup := controller.router.Group("/roles")
	roleGroup.GET("", controller.listRolesHandler)
	roleGroup.POST("", controller.createRoleHandler)
	roleGroup.DELETE("/:id", controller.deleteRoleHandler)
}

func (controller *UserAdminController) userResponse(user *model.User) UserResponse {
	roles, err := controller.users.GetUserRoles(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to resolve user roles")
		roles = []string{}
	}

	return UserResponse{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		Name:           user.Name,
		IsAdmin:        user.IsAdmin,
		IsActive:       user.IsActive,
		OrganizationID: user.OrganizationID,
		BusinessUnitID: user.BusinessUnitID,
		Roles:          roles,
	}
}

func (controller *UserAdminController) listHandler(c *gin.Context) {
	users, err := controller.users.ListUsers()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for i := range users {
		response = append(response, controller.userResponse(&users[i]))
	}

	c.JSON(http.StatusOK, response)
}

func (controller *UserAdminController) createHandler(c *gin.Context) {
	var req CreateUserRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	user, err := controller.users.CreateUser(service.CreateUserParams{
		Username:       req.Username,
		Email:          req.Email,
		Name:           req.Name,
		Password:       req.Password,
		IsAdmin:        req.IsAdmin,
		OrganizationID: req.OrganizationID,
		BusinessUnitID: req.BusinessUnitID,
	})

	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) || errors.Is(err, service.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"status":  409,
				"message": err.Error(),
			})
			return
		}
		log.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusCreated, controller.userResponse(user))
}

func (controller *UserAdminController) getHandler(c *gin.Context) {
	user, err := controller.users.GetUser(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to get user")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, controller.userResponse(user))
}

func (controller *UserAdminController) updateHandler(c *gin.Context) {
	var req UpdateUserRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	user, err := controller.users.UpdateUser(c.Param("id"), service.UpdateUserParams{
		Email:          req.Email,
		Name:           req.Name,
		Password:       req.Password,
		IsAdmin:        req.IsAdmin,
		IsActive:       req.IsActive,
		OrganizationID: req.OrganizationID,
		BusinessUnitID: req.BusinessUnitID,
	})

	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to update user")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, controller.userResponse(user))
}

func (controller *UserAdminController) deleteHandler(c *gin.Context) {
	err := controller.users.DeleteUser(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to delete user")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "User deleted",
	})
}

func (controller *UserAdminController) assignRoleHandler(c *gin.Context) {
	var req AssignRoleRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	err := controller.users.AssignRole(c.Param("id"), req.RoleID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrRoleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": err.Error(),
			})
			return
		}
		log.Error().Err(err).Msg("Failed to assign role")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "Role assigned",
	})
}

func (controller *UserAdminController) removeRoleHandler(c *gin.Context) {
	err := controller.users.RemoveRole(c.Param("id"), c.Param("roleId"))
	if err != nil {
		log.Error().Err(err).Msg("Failed to remove role")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "Role removed",
	})
}

func (controller *UserAdminController) listRolesHandler(c *gin.Context) {
	roles, err := controller.users.ListRoles()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list roles")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, roles)
}

func (controller *UserAdminController) createRoleHandler(c *gin.Context) {
	var req CreateRoleRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	role, err := controller.users.CreateRole(req.Name, req.Description)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create role")
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusCreated, role)
}

func (controller *UserAdminController) deleteRoleHandler(c *gin.Context) {
	err := controller.users.DeleteRole(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoleNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"status":  404,
				"message": "Not Found",
			})
		case errors.Is(err, service.ErrRoleInUse):
			c.JSON(http.StatusConflict, gin.H{
				"status":  409,
				"message": "Role is still assigned to users",
			})
		default:
			log.Error().Err(err).Msg("Failed to delete role")
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  500,
				"message": "Internal Server Error",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  200,
		"message": "Role deleted",
	})
}
