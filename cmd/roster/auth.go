package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubroster/roster/internal/auth"
	"github.com/clubroster/roster/internal/ui"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	GroupID: "advanced",
	Short:   "Manage the roster passphrase",
}

var authHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Hash a new passphrase for passphrase_hash",
	Long: `Read a passphrase (from the terminal, or stdin when piped) and print
its bcrypt hash. Put the hash in config.yaml as passphrase_hash, or export
it as ROSTER_PASSPHRASE_HASH, to lock the CLI and the dashboard.`,
	Annotations: map[string]string{skipAuth: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		passphrase, err := auth.ReadPassphrase(os.Stdin)
		exitOn(err, "reading passphrase")

		hash, err := auth.HashPassphrase(passphrase)
		exitOn(err, "hashing passphrase")

		fmt.Fprintf(os.Stderr, "%s Add this to config.yaml:\n", ui.RenderPass("✓"))
		fmt.Printf("passphrase_hash: %q\n", hash)
	},
}

func init() {
	authCmd.AddCommand(authHashCmd)
	rootCmd.AddCommand(authCmd)
}
