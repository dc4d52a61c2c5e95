package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "telestream",
	Short: "telestream streams Telegram-hosted files over HTTP byte ranges",
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command, exiting the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
