// Package cmd wires the CLI surface of the attendance backend. The binary
// has two jobs: run the webhook server (serve) and generate workbooks from
// the command line (report).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// appVersion is stamped into traces and the root command. Overridable at
// build time via -ldflags "-X .../cmd.appVersion=v1.2.3".
var appVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "attendance",
	Short:   "Attendance webhook receiver and report generator",
	Long:    "attendance ingests chat-bot webhook messages into billing-period partitions and renders per-user attendance workbooks.",
	Version: appVersion,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
}
