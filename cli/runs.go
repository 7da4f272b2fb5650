package cli

import (
	"fmt"

	"github.com/absmach/tuner/pkg/sdk"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	DefTLSVerification        = false
	DefServerURL              = "http://localhost:7070"
	defOffset          uint64 = 0
	defLimit           uint64 = 10
)

var tsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	tsdk = s
}

var runsCmd = []cobra.Command{
	{
		Use:   "list",
		Short: "List runs",
		Long:  `List runs, newest first.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				LogUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := tsdk.ListRuns(defOffset, defLimit)
			if err != nil {
				LogErrorCmd(*cmd, err)

				return
			}

			rows := make([][]string, 0, len(page.Runs))
			for _, r := range page.Runs {
				rows = append(rows, []string{
					r.ID,
					r.Name,
					statusString(r.Status.String()),
					fmt.Sprintf("%d/%d", len(r.History), r.Config.Epochs),
					r.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			LogTableCmd(*cmd, []string{"ID", "NAME", "STATUS", "EPOCHS", "CREATED"}, rows)
			cmd.Printf("%d of %d runs\n\n", len(page.Runs), page.Total)
		},
	},
	{
		Use:   "view <id>",
		Short: "View run",
		Long:  `View run.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				LogUsageCmd(*cmd, cmd.Use)

				return
			}

			r, err := tsdk.GetRun(args[0])
			if err != nil {
				LogErrorCmd(*cmd, err)

				return
			}
			LogJSONCmd(*cmd, r)
		},
	},
	{
		Use:   "history <id>",
		Short: "View run history",
		Long:  `View the per-epoch metrics of a run.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				LogUsageCmd(*cmd, cmd.Use)

				return
			}

			h, err := tsdk.GetHistory(args[0])
			if err != nil {
				LogErrorCmd(*cmd, err)

				return
			}

			rows := make([][]string, 0, len(h.Epochs))
			for _, m := range h.Epochs {
				rows = append(rows, []string{
					fmt.Sprint(m.Epoch),
					fmt.Sprintf("%.4f", m.Loss),
					fmt.Sprintf("%.4f", m.BinaryAccuracy),
					fmt.Sprintf("%.4f", m.ValLoss),
					fmt.Sprintf("%.4f", m.ValBinaryAccuracy),
					fmt.Sprintf("%.3g", m.LearningRate),
				})
			}
			LogTableCmd(*cmd, []string{"EPOCH", "LOSS", "ACCURACY", "VAL_LOSS", "VAL_ACCURACY", "LR"}, rows)
		},
	},
}

func statusString(s string) string {
	switch s {
	case "Completed":
		return color.GreenString(s)
	case "Failed":
		return color.RedString(s)
	case "Running":
		return color.CyanString(s)
	default:
		return s
	}
}

func NewRunsCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "runs [list|view|history]",
		Short: "Runs manager",
		Long:  `List and inspect fine-tuning runs on a running server.`,
	}

	for i := range runsCmd {
		cmd.AddCommand(&runsCmd[i])
	}

	cmd.PersistentFlags().StringVarP(
		&DefServerURL,
		"server-url",
		"s",
		DefServerURL,
		"Server URL",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defOffset,
		"offset",
		"o",
		defOffset,
		"Offset",
	)

	cmd.PersistentFlags().Uint64VarP(
		&defLimit,
		"limit",
		"l",
		defLimit,
		"Limit",
	)

	cmd.PersistentFlags().BoolVarP(
		&DefTLSVerification,
		"tls-verification",
		"v",
		DefTLSVerification,
		"TLS Verification",
	)

	return &cmd
}
