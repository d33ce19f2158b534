package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse guards the admin surface of a personal site",
	Long: `Gatehouse is the authentication and request-defense layer for a
single-admin website: password login, IP/User-Agent bound sessions,
one-time CSRF tokens, brute-force rate limiting, and a security audit log.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
