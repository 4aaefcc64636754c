package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradebot/strategies"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the tradebot CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tradebot version %s\n", version)
		fmt.Fprintf(out, "strategies: %v\n", strategies.Archetypes())
		fmt.Fprintln(out, "https://github.com/rustyeddy/tradebot")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
