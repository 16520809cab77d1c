package cmd

import (
	"fmt"

	"github.com/gatehouse-labs/gatehouse/internal/config"

	"github.com/spf13/cobra"
)

type versionCmd struct {
	root *cobra.Command
	cmd  *cobra.Command
}

func newVersionCmd(root *cobra.Command) *versionCmd {
	return &versionCmd{
		root: root,
	}
}

func (c *versionCmd) Register() {
	c.cmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run:   c.run,
	}

	if c.root != nil {
		c.root.AddCommand(c.cmd)
	}
}

func (c *versionCmd) run(cmd *cobra.Command, args []string) {
	fmt.Printf("Version: %s\n", config.Version)
	fmt.Printf("Commit: %s\n", config.CommitHash)
	fmt.Printf("Build timestamp: %s\n", config.BuildTimestamp)
}
