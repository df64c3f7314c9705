package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "regdesk",
	Short: "regdesk is a conference registration service",
	Long: `Conference registration backend: participant accounts, payments,
submissions and news, served over a JSON API.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
