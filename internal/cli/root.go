// Package cli implements the dealflowd CLI commands.
package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "dealflowd",
	Short: "Deal-flow memo pipeline service",
	Long:  "Serves deal view models built from multi-stage memo records, with live subscriptions and diligence run orchestration.",
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
