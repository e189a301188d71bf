package main

import (
	"github.com/spf13/cobra"

	"github.com/Skryldev/useradmin/admin"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Manage users from the terminal against a running API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		con := admin.NewConsole(c, cmd.InOrStdin(), cmd.OutOrStdout(),
			admin.WithConsoleLogger(logger.With("component", "console")))
		return con.Run(cmd.Context())
	},
}
