package verify

import (
	"errors"

	"github.com/gatehouse-labs/gatehouse/internal/service"

	"github.com/charmbracelet/huh"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var interactive bool
var username string
var password string
var totpCode string
var databasePath string

var VerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a user is set up correctly",
	Long:  `Verify that a user exists and that the given password (and TOTP code, if enabled) is correct.`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Level(zerolog.InfoLevel)

		if interactive {
			var baseTheme *huh.Theme = huh.ThemeBase()

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().Title("Username").Value(&username).Validate((func(s string) error {
						if s == "" {
							return errors.New("username cannot be empty")
						}
						return nil
					})),
					huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password).Validate((func(s string) error {
						if s == "" {
							return errors.New("password cannot be empty")
						}
						return nil
					})),
					huh.NewInput().Title("Totp Code (if setup)").Value(&totpCode),
				),
			)

			err := form.WithTheme(baseTheme).Run()

			if err != nil {
				log.Fatal().Err(err).Msg("Form failed")
			}
		}

		if username == "" || password == "" {
			log.Fatal().Msg("Username and password cannot be empty")
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

		if !user.IsActive {
			log.Fatal().Msg("User is disabled")
		}

		if !userService.CheckPassword(user, password) {
			log.Fatal().Msg("Password is incorrect")
		}

		if user.TotpSecret == "" {
			if totpCode != "" {
				log.Warn().Msg("User does not have a totp secret")
			}
			log.Info().Msg("User verified")
			return
		}

		ok := totp.Validate(totpCode, user.TotpSecret)

		if !ok {
			log.Fatal().Msg("Totp code incorrect")
		}

		log.Info().Msg("User verified")
	},
}

func init() {
	VerifyCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Verify a user interactively")
	VerifyCmd.Flags().StringVar(&username, "username", "", "Username")
	VerifyCmd.Flags().StringVar(&password, "password", "", "Password")
	VerifyCmd.Flags().StringVar(&totpCode, "totp", "", "Totp code")
	VerifyCmd.Flags().StringVar(&databasePath, "database-path", "gatehouse.db", "Path to the sqlite database file")
}
