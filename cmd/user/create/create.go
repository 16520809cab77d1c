package create

import (
	"errors"

	"github.com/gatehouse-labs/gatehouse/internal/service"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var interactive bool
var username string
var email string
var name string
var password string
var admin bool
var databasePath string

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long:  `Create a user in the database either interactively or by passing flags.`,
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
					huh.NewInput().Title("Email").Value(&email).Validate((func(s string) error {
						if s == "" {
							return errors.New("email cannot be empty")
						}
						return nil
					})),
					huh.NewInput().Title("Name").Value(&name),
					huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password).Validate((func(s string) error {
						if s == "" {
							return errors.New("password cannot be empty")
						}
						return nil
					})),
					huh.NewSelect[bool]().Title("Should the user be an admin?").Options(huh.NewOption("Yes", true), huh.NewOption("No", false)).Value(&admin),
				),
			)

			err := form.WithTheme(baseTheme).Run()

			if err != nil {
				log.Fatal().Err(err).Msg("Form failed")
			}
		}

		if username == "" || email == "" || password == "" {
			log.Fatal().Msg("Username, email and password cannot be empty")
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

		user, err := userService.CreateUser(service.CreateUserParams{
			Username: username,
			Email:    email,
			Name:     name,
			Password: password,
			IsAdmin:  admin,
		})

		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create user")
		}

		log.Info().Str("id", user.ID).Str("username", user.Username).Bool("admin", user.IsAdmin).Msg("User created")
	},
}

func init() {
	CreateCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Create a user interactively")
	CreateCmd.Flags().StringVar(&username, "username", "", "Username")
	CreateCmd.Flags().StringVar(&email, "email", "", "Email")
	CreateCmd.Flags().StringVar(&name, "name", "", "Display name")
	CreateCmd.Flags().StringVar(&password, "password", "", "Password")
	CreateCmd.Flags().BoolVar(&admin, "admin", false, "Make the user an admin")
	CreateCmd.Flags().StringVar(&databasePath, "database-path", "gatehouse.db", "Path to the sqlite database file")
}
