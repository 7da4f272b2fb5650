package tunerd

import (
	"context"

	"github.com/absmach/tuner/cli"
	"github.com/spf13/cobra"
)

func NewServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the runs API",
		Long:  `Serve the runs, history and schedule API over the configured storage.`,
		Run: func(cmd *cobra.Command, _ []string) {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			cfg, rt, logger, err := start(ctx)
			if err != nil {
				cli.LogErrorCmd(*cmd, err)

				return
			}
			defer rt.Close(context.Background())

			if port != "" {
				cfg.Server.Port = port
			}
			if err := serve(ctx, cancel, cfg, rt, logger); err != nil {
				cli.LogErrorCmd(*cmd, err)
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "HTTP port, overrides the configured one")

	return cmd
}
