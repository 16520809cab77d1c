package user

import (
	"github.com/gatehouse-labs/gatehouse/cmd/user/create"
	"github.com/gatehouse-labs/gatehouse/cmd/user/verify"

	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User utilities",
		Long:  `Utilities for creating and verifying users in the database.`,
	}
	userCmd.AddCommand(create.CreateCmd)
	userCmd.AddCommand(verify.VerifyCmd)
	return userCmd
}
