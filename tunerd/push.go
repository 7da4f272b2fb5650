package tunerd

import (
	"github.com/absmach/tuner"
	"github.com/absmach/tuner/cli"
	"github.com/absmach/tuner/pkg/hub"
	"github.com/absmach/tuner/pkg/model"
	"github.com/spf13/cobra"
)

func NewPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <checkpoint> <reference>",
		Short: "Push a trained model",
		Long: `Push a model checkpoint to an OCI registry (oci://registry/repository:tag)
or copy it to a local path.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				cli.LogUsageCmd(*cmd, cmd.Use)

				return
			}

			cfg, err := tuner.LoadConfig(ConfigPath)
			if err != nil {
				cli.LogErrorCmd(*cmd, err)

				return
			}

			ckpt, err := model.LoadCheckpoint(args[0])
			if err != nil {
				cli.LogErrorCmd(*cmd, err)

				return
			}

			h, err := hub.New(cfg.Hub)
			if err != nil {
				cli.LogErrorCmd(*cmd, err)

				return
			}
			if err := h.Push(cmd.Context(), args[1], ckpt); err != nil {
				cli.LogErrorCmd(*cmd, err)

				return
			}
			cli.LogSuccessCmd(*cmd, "Pushed %s to %s", args[0], args[1])
		},
	}
}
