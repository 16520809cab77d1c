package bootstrap

import (
	"github.com/gatehouse-labs/gatehouse/internal/config"
	"github.com/gatehouse-labs/gatehouse/internal/service"
)

type Services struct {
	databaseService *service.DatabaseService
	userService     *service.UserService
	authService     *service.AuthService
	clientService   *service.ClientService
	tokenService    *service.TokenService
	oauthService    *service.OAuthService
	orgService      *service.OrgService
}

func (app *BootstrapApp) initServices() (Services, error) {
	services := Services{}

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: app.config.DatabasePath,
	})

	err := databaseService.Init()

	if err != nil {
		return Services{}, err
	}

	services.databaseService = databaseService

	database := databaseService.GetDatabase()

	userService := service.NewUserService(service.UserServiceConfig{
		Database: database,
	})

	services.userService = userService

	authService := service.NewAuthService(service.AuthServiceConfig{
		SessionSecret:     app.config.SessionSecret,
		SessionExpiry:     app.config.SessionExpiry,
		SecureCookie:      app.config.SecureCookie,
		LoginTimeout:      app.config.LoginTimeout,
		LoginMaxRetries:   app.config.LoginMaxRetries,
		SessionCookieName: config.SessionCookieName,
		Database:          database,
	}, userService)

	err = authService.Init()

	if err != nil {
		return Services{}, err
	}

	services.authService = authService

	clientService := service.NewClientService(service.ClientServiceConfig{
		Database: database,
	})

	services.clientService = clientService

	tokenService := service.NewTokenService(service.TokenServiceConfig{
		Issuer:            app.config.AppURL,
		AccessTokenExpiry: app.config.AccessTokenExpiry,
		Database:          database,
	})

	err = tokenService.Init()

	if err != nil {
		return Services{}, err
	}

	services.tokenService = tokenService

	oauthService := service.NewOAuthService(service.OAuthServiceConfig{
		Database: database,
	}, clientService, userService, tokenService)

	services.oauthService = oauthService

	orgService := service.NewOrgService(service.OrgServiceConfig{
		Database: database,
	})

	services.orgService = orgService

	return services, nil
}
