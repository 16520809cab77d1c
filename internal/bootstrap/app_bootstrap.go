package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/gatehouse-labs/gatehouse/internal/config"

	"github.com/rs/zerolog/log"
)

type BootstrapApp struct {
	config   config.Config
	services Services
}

func NewBootstrapApp(config config.Config) *BootstrapApp {
	return &BootstrapApp{
		config: config,
	}
}

func (app *BootstrapApp) Setup() error {
	log.Trace().Interface("config", app.config).Msg("Config dump")

	// Services
	services, err := app.initServices()

	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	app.services = services

	// Setup router
	router, err := app.setupRouter()

	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	// Start db cleanup routine
	log.Debug().Msg("Starting database cleanup routine")
	go app.dbCleanup()

	// Start server
	address := fmt.Sprintf("%s:%d", app.config.Address, app.config.Port)
	log.Info().Msgf("Starting server on %s", address)
	if err := router.Run(address); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	return nil
}

// dbCleanup sweeps expired authorization codes, resumption requests and
// sessions. Expiry is also enforced on read, so the sweep only keeps the
// tables from growing.
func (app *BootstrapApp) dbCleanup() {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := app.services.oauthService.CleanupExpired(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to clean up expired records")
		}
		cancel()
	}
}
