package main

import (
	"github.com/spf13/cobra"

	"github.com/99minutos/identity-service/internal/pkg/config"
)

// configFile is the optional YAML file shared by every subcommand.
var configFile string

// NewRootCmd creates the root command for the identityd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "identityd",
		Short:         "Identity service - accounts, sessions and tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig layers the config file, environment and the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cmd.Context(), config.Source{File: configFile, Flags: cmd.Flags()})
}
