package tunerd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/absmach/tuner"
	"github.com/absmach/tuner/cli"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var errNotPositive = errors.New("must be a positive number")

func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file",
		Long:  `Interactively write a TOML configuration file for the tuner.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if _, err := os.Stat(ConfigPath); err == nil && !force {
				cli.LogErrorCmd(*cmd, fmt.Errorf("%s already exists, use --force to overwrite it", ConfigPath))

				return
			}

			cfg, err := runInitForm(tuner.DefaultConfig())
			if err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return
				}
				cli.LogErrorCmd(*cmd, err)

				return
			}

			if err := tuner.WriteFile(ConfigPath, cfg); err != nil {
				cli.LogErrorCmd(*cmd, err)

				return
			}
			cli.LogSuccessCmd(*cmd, "Configuration written to %s", ConfigPath)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")

	return cmd
}

func runInitForm(cfg tuner.Config) (tuner.Config, error) {
	epochs := strconv.Itoa(cfg.Run.Epochs)
	batchSize := strconv.Itoa(cfg.Run.BatchSize)
	peak := strconv.FormatFloat(cfg.Run.PeakLearningRate, 'g', -1, 64)
	warmup := strconv.FormatFloat(cfg.Run.WarmupFraction, 'g', -1, 64)
	confirm := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&cfg.LogLevel),
			huh.NewSelect[string]().
				Title("Run storage").
				Options(huh.NewOptions("memory", "badger", "sqlite", "postgres")...).
				Value(&cfg.Storage.Type),
			huh.NewInput().
				Title("MQTT broker address").
				Description("Leave empty to disable progress events.").
				Placeholder("tcp://localhost:1883").
				Value(&cfg.MQTT.Address),
			huh.NewInput().
				Title("HTTP port").
				Value(&cfg.Server.Port),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Epochs").
				Value(&epochs).
				Validate(positiveInt),
			huh.NewInput().
				Title("Batch size").
				Value(&batchSize).
				Validate(positiveInt),
			huh.NewInput().
				Title("Peak learning rate").
				Value(&peak).
				Validate(positiveFloat),
			huh.NewInput().
				Title("Warmup fraction").
				Value(&warmup).
				Validate(fraction),
			huh.NewInput().
				Title("Encoder").
				Description("Checkpoint path or oci:// reference. Leave empty to train from scratch.").
				Value(&cfg.Run.EncoderRef),
			huh.NewInput().
				Title("Work directory").
				Value(&cfg.Run.WorkDir),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write configuration?").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return tuner.Config{}, err
	}
	if !confirm {
		return tuner.Config{}, huh.ErrUserAborted
	}

	// The validators above accepted every value.
	cfg.Run.Epochs, _ = strconv.Atoi(epochs)
	cfg.Run.BatchSize, _ = strconv.Atoi(batchSize)
	cfg.Run.PeakLearningRate, _ = strconv.ParseFloat(peak, 64)
	cfg.Run.WarmupFraction, _ = strconv.ParseFloat(warmup, 64)

	return cfg, nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return errNotPositive
	}

	return nil
}

func positiveFloat(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return errNotPositive
	}

	return nil
}

func fraction(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return errors.New("must be between 0 and 1")
	}

	return nil
}
