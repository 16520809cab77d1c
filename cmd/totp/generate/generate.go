package generate

import (
	"errors"
	"os"

	"github.com/gatehouse-labs/gatehouse/internal/service"

	"github.com/charmbracelet/huh"
	"github.com/mdp/qrterminal/v3"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var username string
var databasePath string

var GenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a totp secret for a user",
	Run: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Level(zerolog.InfoLevel)

		var baseTheme *huh.Theme = huh.ThemeBase()

		if username == "" {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().Title("Username").Value(&username).Validate((func(s string) error {
						if s == "" {
							return errors.New("username cannot be empty")
						}
						return nil
					})),
				),
			)

			err := form.WithTheme(baseTheme).Run()

			if err != nil {
				log.Fatal().Err(err).Msg("Form failed")
			}
		}

		databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
			DatabasePath: databasePath,
		})

		err := databaseService.Init()

		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}

		userService := service.NewUserService(service.UserServiceConfig{
			Database: databaseService.GetDatabase(),
		})

		user, err := userService.GetUserByUsername(username)

		if err != nil {
			log.Fatal().Err(err).Msg("Failed to find user")
		}

		if user.TotpSecret != "" {
			log.Fatal().Msg("User already has a totp secret")
		}

		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      "Gatehouse",
			AccountName: user.Username,
		})

		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate totp secret")
		}

		secret := key.Secret()

		log.Info().Str("secret", secret).Msg("Generated totp secret")
		log.Info().Msg("Scan the QR code with your authenticator app")

		config := qrterminal.Config{
			Level:     qrterminal.L,
			Writer:    os.Stdout,
			BlackChar: qrterminal.BLACK,
			WhiteChar: qrterminal.WHITE,
			QuietZone: 2,
		}

		qrterminal.GenerateWithConfig(key.URL(), config)

		var totpCode string

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Code").Value(&totpCode).Validate((func(s string) error {
					if s == "" {
						return errors.New("code cannot be empty")
					}
					return nil
				})),
			),
		)

		err = form.WithTheme(baseTheme).Run()

		if err != nil {
			log.Fatal().Err(err).Msg("Form failed")
		}

		ok := totp.Validate(totpCode, secret)

		if !ok {
			log.Fatal().Msg("Totp code incorrect, secret was not saved")
		}

		err = userService.SetTotpSecret(user.ID, secret)

		if err != nil {
			log.Fatal().Err(err).Msg("Failed to save totp secret")
		}

		log.Info().Msg("Totp enabled for user")
	},
}

func init() {
	GenerateCmd.Flags().StringVar(&username, "username", "", "Username")
	GenerateCmd.Flags().StringVar(&databasePath, "database-path", "gatehouse.db", "Path to the sqlite database file")
}
