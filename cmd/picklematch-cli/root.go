package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	timeout    time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "picklematch-cli",
	Short: "PickleMatch auth state client",
	Long: `picklematch-cli talks to a running PickleMatch server.

Example usage:
  picklematch-cli state                      # Print the current auth state
  picklematch-cli nav                        # Print the navigation menu
  picklematch-cli sign-in -e a@b.c -p secret # Sign in with the local provider
  picklematch-cli verify USER_ID             # Verify a player (admin)
  picklematch-cli watch                      # Follow auth state changes`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
}

func httpClient() *http.Client {
	return &http.Client{Timeout: timeout}
}
