package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command of the natours CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "natours",
		Short: "Natours API server and account tooling",
		Long: `Natours serves the accounts and sessions API of the tours backend.
Configuration is read from the environment (see JWT_SECRET, MONGO_URI, REDIS_ADDR).`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCreateUserCmd())

	return cmd
}
