package main

import (
	"log"
	"os"

	"github.com/absmach/tuner"
	"github.com/absmach/tuner/cli"
	"github.com/absmach/tuner/pkg/sdk"
	"github.com/absmach/tuner/tunerd"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const pathEnv = ".env"

func main() {
	rootCmd := &cobra.Command{
		Use:   "tuner",
		Short: "Tuner CLI",
		Long:  `Tuner fine-tunes sentiment classifiers and inspects their runs.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if _, err := os.Stat(pathEnv); err == nil {
				if err := godotenv.Load(pathEnv); err != nil {
					log.Printf("failed to load %s: %s", pathEnv, err)
				}
			}

			sdkConf := sdk.Config{
				ServerURL:       cli.DefServerURL,
				TLSVerification: cli.DefTLSVerification,
			}
			s := sdk.NewSDK(sdkConf)
			cli.SetSDK(s)
		},
	}

	rootCmd.PersistentFlags().StringVarP(
		&tunerd.ConfigPath,
		"config",
		"c",
		tuner.DefConfigPath,
		"Configuration file",
	)

	rootCmd.AddCommand(
		tunerd.NewTrainCmd(),
		tunerd.NewServeCmd(),
		tunerd.NewInitCmd(),
		tunerd.NewPushCmd(),
		cli.NewRunsCmd(),
		cli.NewScheduleCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
