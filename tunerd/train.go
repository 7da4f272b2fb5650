package tunerd

import (
	"context"
	"log/slog"

	"github.com/absmach/tuner/cli"
	"github.com/absmach/tuner/trainer"
	"github.com/spf13/cobra"
)

type trainFlags struct {
	epochs    int
	batchSize int
	peak      float64
	warmup    float64
	seed      int64
	workDir   string
	encoder   string
	serve     bool
}

func NewTrainCmd() *cobra.Command {
	var f trainFlags

	cmd := &cobra.Command{
		Use:   "train <archive>",
		Short: "Fine-tune a sentiment classifier",
		Long: `Extract a review archive, fine-tune a classifier on it and export
history.json and model.cbor into the run output directory.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				cli.LogUsageCmd(*cmd, cmd.Use)

				return
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			cfg, rt, logger, err := start(ctx)
			if err != nil {
				cli.LogErrorCmd(*cmd, err)

				return
			}
			defer rt.Close(context.Background())

			runCfg := f.apply(cmd, cfg.Run)

			var r trainer.Run
			train := func(ctx context.Context) error {
				var err error
				r, err = rt.Service.Train(ctx, args[0], runCfg)

				return err
			}

			if f.serve {
				err = serve(ctx, cancel, cfg, rt, logger, train)
			} else {
				err = train(ctx)
			}
			if err != nil {
				logger.Error("training failed", slog.String("run_id", r.ID), slog.Any("error", err))
				cli.LogErrorCmd(*cmd, err)

				return
			}
			cli.LogJSONCmd(*cmd, r)
		},
	}

	cmd.Flags().IntVarP(&f.epochs, "epochs", "e", 0, "Number of epochs")
	cmd.Flags().IntVarP(&f.batchSize, "batch-size", "b", 0, "Batch size")
	cmd.Flags().Float64Var(&f.peak, "lr", 0, "Peak learning rate")
	cmd.Flags().Float64Var(&f.warmup, "warmup", 0, "Fraction of the steps spent warming up")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Seed for splitting, shuffling and initialization")
	cmd.Flags().StringVarP(&f.workDir, "work-dir", "w", "", "Directory that receives the run outputs")
	cmd.Flags().StringVar(&f.encoder, "encoder", "", "Encoder checkpoint path or oci:// reference")
	cmd.Flags().BoolVar(&f.serve, "serve", false, "Serve the API while training")

	return cmd
}

// apply overrides cfg with the flags the user set explicitly.
func (f trainFlags) apply(cmd *cobra.Command, cfg trainer.RunConfig) trainer.RunConfig {
	flags := cmd.Flags()
	if flags.Changed("epochs") {
		cfg.Epochs = f.epochs
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = f.batchSize
	}
	if flags.Changed("lr") {
		cfg.PeakLearningRate = f.peak
	}
	if flags.Changed("warmup") {
		cfg.WarmupFraction = f.warmup
	}
	if flags.Changed("seed") {
		cfg.Seed = f.seed
	}
	if flags.Changed("work-dir") {
		cfg.WorkDir = f.workDir
	}
	if flags.Changed("encoder") {
		cfg.EncoderRef = f.encoder
	}

	return cfg
}
