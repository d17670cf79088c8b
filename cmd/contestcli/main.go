package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	a := &app{out: os.Stdout}

	var rootCmd = &cobra.Command{
		Use:           "contest",
		Short:         "Submit solutions and follow their judging from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default $CONTEST_CLIENT_CONFIG or ~/.config/contest-client/config.toml)")
	rootCmd.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "backend url, overrides the config")
	rootCmd.PersistentFlags().StringVar(&a.classID, "class", "", "class transaction id, overrides the config")

	rootCmd.AddCommand(
		newLoginCmd(a),
		newWhoamiCmd(a),
		newLangsCmd(a),
		newCasesCmd(a),
		newContestsCmd(a),
		newSubmitCmd(a),
		newHistoryCmd(a),
		newLeaderboardCmd(a),
		newSubmissionsCmd(a),
		newStatementCmd(a),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
