package cmd

import (
	"strings"

	totpCmd "github.com/gatehouse-labs/gatehouse/cmd/totp"
	userCmd "github.com/gatehouse-labs/gatehouse/cmd/user"
	"github.com/gatehouse-labs/gatehouse/internal/bootstrap"
	"github.com/gatehouse-labs/gatehouse/internal/config"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "A small identity provider for your apps.",
	Long:  `Gatehouse is a user management service with an OAuth 2.0 authorization server, organizations and role based access for your applications.`,
	Run: func(cmd *cobra.Command, args []string) {
		var conf config.Config

		err := viper.Unmarshal(&conf)

		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse config")
		}

		validate := validator.New()

		err = validate.Struct(conf)

		if err != nil {
			log.Fatal().Err(err).Msg("Invalid config")
		}

		logLevel, err := zerolog.ParseLevel(strings.ToLower(conf.LogLevel))

		if err != nil {
			log.Warn().Str("level", conf.LogLevel).Msg("Invalid log level, defaulting to info")
			logLevel = zerolog.InfoLevel
		}

		zerolog.SetGlobalLevel(logLevel)

		log.Info().Str("version", config.Version).Msg("Starting gatehouse")

		app := bootstrap.NewBootstrapApp(conf)

		err = app.Setup()

		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start app")
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func init() {
	rootCmd.AddCommand(userCmd.UserCmd())
	rootCmd.AddCommand(totpCmd.TotpCmd())

	newVersionCmd(rootCmd).Register()
	newHealthcheckCmd(rootCmd).Register()

	viper.AutomaticEnv()

	rootCmd.Flags().Int("port", 3000, "Port to run the server on.")
	rootCmd.Flags().String("address", "0.0.0.0", "Address to bind the server to.")
	rootCmd.Flags().String("app-url", "", "The URL the app is reachable at.")
	rootCmd.Flags().String("app-title", "Gatehouse", "Title shown by the login UI.")
	rootCmd.Flags().String("session-secret", "", "Secret used to authenticate session cookies (at least 32 characters).")
	rootCmd.Flags().Bool("secure-cookie", false, "Send session cookie over secure connections only.")
	rootCmd.Flags().Int("session-expiry", 86400, "Session expiry in seconds.")
	rootCmd.Flags().Int("access-token-expiry", 3600, "Access token expiry in seconds.")
	rootCmd.Flags().String("log-level", "info", "Log level.")
	rootCmd.Flags().Int("login-timeout", 300, "Lockout duration in seconds after too many failed logins.")
	rootCmd.Flags().Int("login-max-retries", 5, "Failed login attempts before a lockout (0 to disable).")
	rootCmd.Flags().String("database-path", "gatehouse.db", "Path to the sqlite database file.")
	rootCmd.Flags().String("trusted-proxies", "", "Comma separated list of trusted proxy IPs.")

	viper.BindEnv("port", "PORT")
	viper.BindEnv("address", "ADDRESS")
	viper.BindEnv("app-url", "APP_URL")
	viper.BindEnv("app-title", "APP_TITLE")
	viper.BindEnv("session-secret", "SESSION_SECRET")
	viper.BindEnv("secure-cookie", "SECURE_COOKIE")
	viper.BindEnv("session-expiry", "SESSION_EXPIRY")
	viper.BindEnv("access-token-expiry", "ACCESS_TOKEN_EXPIRY")
	viper.BindEnv("log-level", "LOG_LEVEL")
	viper.BindEnv("login-timeout", "LOGIN_TIMEOUT")
	viper.BindEnv("login-max-retries", "LOGIN_MAX_RETRIES")
	viper.BindEnv("database-path", "DATABASE_PATH")
	viper.BindEnv("trusted-proxies", "TRUSTED_PROXIES")

	viper.BindPFlags(rootCmd.Flags())
}
