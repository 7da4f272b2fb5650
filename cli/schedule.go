package cli

import (
	"fmt"

	"github.com/absmach/tuner/pkg/schedule"
	"github.com/spf13/cobra"
)

type scheduleFlags struct {
	peak           float64
	totalSteps     int
	warmupSteps    int
	stepsPerEpoch  int
	epochs         int
	warmupFraction float64
	every          int
	asJSON         bool
}

func NewScheduleCmd() *cobra.Command {
	var f scheduleFlags

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print a learning rate schedule",
		Long: `Print the learning rate of every step of a warmup and linear decay schedule.
The step budget is either --total-steps and --warmup-steps, or derived from
--steps-per-epoch, --epochs and --warmup-fraction.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				LogUsageCmd(*cmd, cmd.Use)

				return
			}

			s, err := buildSchedule(f)
			if err != nil {
				LogErrorCmd(*cmd, err)

				return
			}

			if f.asJSON {
				LogJSONCmd(*cmd, map[string]any{
					"schedule": s.Config(),
					"rates":    s.Curve(),
				})

				return
			}

			cfg := s.Config()
			every := max(f.every, 1)
			rows := make([][]string, 0, cfg.TotalSteps/every+1)
			for step := 0; step < cfg.TotalSteps; step += every {
				rows = append(rows, []string{
					fmt.Sprint(step),
					fmt.Sprintf("%.6g", s.Rate(step)),
					fmt.Sprintf("%.4f", s.Multiplier(step)),
				})
			}
			LogTableCmd(*cmd, []string{"STEP", "LR", "MULTIPLIER"}, rows)
			LogSuccessCmd(*cmd, "peak %g, %d steps, %d warmup", cfg.PeakLearningRate, cfg.TotalSteps, cfg.WarmupSteps)
		},
	}

	cmd.Flags().Float64VarP(&f.peak, "peak", "p", 3e-5, "Peak learning rate")
	cmd.Flags().IntVarP(&f.totalSteps, "total-steps", "t", 0, "Total number of optimizer steps")
	cmd.Flags().IntVarP(&f.warmupSteps, "warmup-steps", "w", 0, "Number of warmup steps")
	cmd.Flags().IntVar(&f.stepsPerEpoch, "steps-per-epoch", 0, "Batches per epoch")
	cmd.Flags().IntVar(&f.epochs, "epochs", 5, "Number of epochs")
	cmd.Flags().Float64Var(&f.warmupFraction, "warmup-fraction", 0.1, "Fraction of the steps spent warming up")
	cmd.Flags().IntVarP(&f.every, "every", "e", 1, "Print every n-th step")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the whole curve as JSON")

	return cmd
}

func buildSchedule(f scheduleFlags) (schedule.Schedule, error) {
	if f.stepsPerEpoch > 0 {
		return schedule.FromEpochs(f.peak, f.stepsPerEpoch, f.epochs, f.warmupFraction)
	}

	return schedule.New(schedule.Config{
		PeakLearningRate: f.peak,
		TotalSteps:       f.totalSteps,
		WarmupSteps:      f.warmupSteps,
	})
}
