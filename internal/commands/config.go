package commands

import (
	"fmt"

	"achieveit/internal/config"

	"github.com/spf13/cobra"
)

func addConfig(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file.",
	}

	path := "achieveit.yml"
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values.",
		Example: `
achieveit config init
achieveit config init --path /etc/achieveit/achieveit.yml
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Write(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&path, "path", "p", path, "Where to write the file.")

	cmd.AddCommand(initCmd)
	topLevel.AddCommand(cmd)
}
