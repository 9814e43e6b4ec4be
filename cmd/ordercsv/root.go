package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ordercsv",
	Short: "Export orders from PostgreSQL as CSV",
	Long: `ordercsv streams order exports to a file or stdout.

Rows are read from a server-side cursor and written as they arrive, so
memory stays flat regardless of the number of orders exported.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile == "" {
			// A missing default .env is fine
			_ = godotenv.Load()
			return nil
		}
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default: .env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
}
