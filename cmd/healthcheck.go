package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type healthResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type healthcheckCmd struct {
	root *cobra.Command
	cmd  *cobra.Command

	viper *viper.Viper
}

func newHealthcheckCmd(root *cobra.Command) *healthcheckCmd {
	return &healthcheckCmd{
		root:  root,
		viper: viper.New(),
	}
}

func (c *healthcheckCmd) Register() {
	c.cmd = &cobra.Command{
		Use:   "healthcheck [app-url]",
		Short: "Perform a health check",
		Long:  `Use the health check endpoint to verify that Gatehouse is running and healthy.`,
		Run:   c.run,
	}

	c.viper.AutomaticEnv()

	if c.root != nil {
		c.root.AddCommand(c.cmd)
	}
}

func (c *healthcheckCmd) run(cmd *cobra.Command, args []string) {
	log.Logger = log.Level(zerolog.InfoLevel)

	port := c.viper.GetString("PORT")
	address := c.viper.GetString("ADDRESS")

	if port == "" {
		port = "3000"
	}

	if address == "" {
		address = "127.0.0.1"
	}

	appURL := "http://" + address + ":" + port

	if len(args) > 0 {
		appURL = args[0]
	}

	log.Info().Str("appUrl", appURL).Msg("Performing health check")

	client := http.Client{
		Timeout: 10 * time.Second,
	}

	resp, err := client.Get(appURL + "/api/health")

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to perform request")
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatal().Msgf("Service is not healthy. Status code: %d", resp.StatusCode)
	}

	var health healthResponse

	body, err := io.ReadAll(resp.Body)

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read response")
	}

	err = json.Unmarshal(body, &health)

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to decode response")
	}

	log.Info().Interface("response", health).Msg("Gatehouse is healthy")
}
