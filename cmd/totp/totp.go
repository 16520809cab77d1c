package totp

import (
	"github.com/gatehouse-labs/gatehouse/cmd/totp/generate"

	"github.com/spf13/cobra"
)

func TotpCmd() *cobra.Command {
	totpCmd := &cobra.Command{
		Use:   "totp",
		Short: "Totp utilities",
		Long:  `Utilities for enabling totp on users.`,
	}
	totpCmd.AddCommand(generate.GenerateCmd)
	return totpCmd
}
