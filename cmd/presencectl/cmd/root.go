package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "presencectl",
	Short: "presencectl is a CLI tool to query the presence server's stats API",
	Long: `A command-line interface for inspecting live and historical usage of the
presence server: active connections, per-identity counts, daily unique
visitors and session duration aggregates.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:3000",
		"base URL of the presence server")
}
