package bootstrap

import (
	"fmt"
	"strings"

	"github.com/gatehouse-labs/gatehouse/internal/controller"
	"github.com/gatehouse-labs/gatehouse/internal/middleware"

	"github.com/gin-gonic/gin"
)

func (app *BootstrapApp) setupRouter() (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(gin.Recovery())

	if len(app.config.TrustedProxies) > 0 {
		err := engine.SetTrustedProxies(strings.Split(app.config.TrustedProxies, ","))

		if err != nil {
			return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
		}
	}

	contextMiddleware := middleware.NewContextMiddleware(app.services.authService, app.services.userService)

	err := contextMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize context middleware: %w", err)
	}

	engine.Use(contextMiddleware.Middleware())

	zerologMiddleware := middleware.NewZerologMiddleware()

	err = zerologMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize zerolog middleware: %w", err)
	}

	engine.Use(zerologMiddleware.Middleware())

	apiRouter := engine.Group("/api")

	contextController := controller.NewContextController(controller.ContextControllerConfig{
		Title:  app.config.AppTitle,
		AppURL: app.config.AppURL,
	}, apiRouter)

	contextController.SetupRoutes()

	userController := controller.NewUserController(apiRouter, app.services.authService, app.services.userService)

	userController.SetupRoutes()

	oauthController := controller.NewOAuthController(controller.OAuthControllerConfig{
		AppURL: app.config.AppURL,
		Issuer: app.config.AppURL,
	}, &engine.RouterGroup, app.services.oauthService, app.services.tokenService)

	oauthController.SetupRoutes()

	healthController := controller.NewHealthController(apiRouter)

	healthController.SetupRoutes()

	adminMiddleware := middleware.NewAdminMiddleware(app.services.tokenService, app.services.clientService)

	err = adminMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize admin middleware: %w", err)
	}

	adminRouter := apiRouter.Group("/admin")
	adminRouter.Use(adminMiddleware.Middleware())

	userAdminController := controller.NewUserAdminController(adminRouter, app.services.userService)

	userAdminController.SetupRoutes()

	clientAdminController := controller.NewClientAdminController(adminRouter, app.services.clientService)

	clientAdminController.SetupRoutes()

	orgAdminController := controller.NewOrgAdminController(adminRouter, app.services.orgService)

	orgAdminController.SetupRoutes()

	return engine, nil
}
