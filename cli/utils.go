package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	prettyjson "github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
)

func LogJSONCmd(cmd cobra.Command, iList ...any) {
	for _, i := range iList {
		m, err := json.Marshal(i)
		if err != nil {
			LogErrorCmd(cmd, err)

			return
		}

		pj, err := prettyjson.Format(m)
		if err != nil {
			LogErrorCmd(cmd, err)

			return
		}

		cmd.Printf("\n%s\n\n", string(pj))
	}
}

func LogUsageCmd(cmd cobra.Command, u string) {
	cmd.Printf(color.YellowString("\nusage: %s\n\n"), u)
}

func LogErrorCmd(cmd cobra.Command, err error) {
	boldRed := color.New(color.FgRed, color.Bold)
	boldRed.Fprintf(cmd.ErrOrStderr(), "\nerror: ")

	cmd.PrintErrf("%s\n\n", color.RedString(err.Error()))
}

func LogSuccessCmd(cmd cobra.Command, format string, args ...any) {
	cmd.Print(color.GreenString("\n"+format+"\n\n", args...))
}

// LogTableCmd prints rows under a bold header, one tab separated row per line.
func LogTableCmd(cmd cobra.Command, header []string, rows [][]string) {
	bold := color.New(color.Bold)
	for i, h := range header {
		if i > 0 {
			cmd.Print("\t")
		}
		cmd.Print(bold.Sprint(h))
	}
	cmd.Println()
	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				cmd.Print("\t")
			}
			cmd.Print(v)
		}
		cmd.Println()
	}
	fmt.Fprintln(cmd.OutOrStdout())
}
