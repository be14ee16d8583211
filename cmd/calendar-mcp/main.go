// Command calendar-mcp serves unified mail and calendar tools across
// Microsoft 365, Outlook.com, Google and IMAP accounts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

var (
	// Set via -ldflags at build time.
	version = "dev"
	commit  = ""
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "calendar-mcp",
		Short:         "Unified mail and calendar tools across several accounts",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "path to the YAML config file")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newAccountsCmd(&configPath),
		newLoginCmd(&configPath),
		newTestAccountCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func versionString() string {
	if commit == "" {
		return version
	}
	return fmt.Sprintf("%s (%s)", version, commit)
}
