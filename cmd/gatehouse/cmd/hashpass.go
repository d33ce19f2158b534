package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/gatehouse/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash an admin password for GATEHOUSE_ADMIN_PASSWORD_HASH",
	Long: `Reads a password from stdin and prints its PBKDF2 hash in salt:key
form. The password is read from stdin rather than taken as an argument
so it never appears in shell history or the process list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(os.Stderr, "Password: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")

		if password == "" {
			return fmt.Errorf("password must not be empty")
		}
		if len(password) > auth.MaxPasswordLen {
			return fmt.Errorf("password exceeds %d bytes", auth.MaxPasswordLen)
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
