package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achieveit",
		Short: "Goal, habit and Google Fit dashboard server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to achieveit.yml.")

	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addServe(topLevel)
	addMigrate(topLevel)
	addConfig(topLevel)
	addSecret(topLevel)
}
