package commands

import (
	"os"
	"os/signal"
	"syscall"

	"achieveit/internal/app"
	"achieveit/internal/config"

	"github.com/spf13/cobra"
)

func addServe(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server.",
		Example: `
achieveit serve
ACHIEVEIT_STORE_DRIVER=postgres ACHIEVEIT_STORE_URL=postgres://... achieveit serve
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(cfg).Init(ctx)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}

	topLevel.AddCommand(cmd)
}
