package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"mcpvet/pkg/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mcpvet",
	Short: "Validate MCP servers for protocol conformance",
	Long: `mcpvet exercises Model Context Protocol servers with scripted
JSON-RPC conversations and grades the responses: single-server probes
over HTTP, WebSocket, or stdio, and batch validation of known server
implementations across the ecosystem.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid arguments, unreachable servers)
	SilenceUsage: true,
}

var logLevel string

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v // Set cobra's version field as well
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Set up version template
	rootCmd.SetVersionTemplate(`{{printf "mcpvet version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Logs go to stderr so commands that print JSON documents keep a clean
	// stdout.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.InitForCLI(logging.ParseLevel(logLevel), os.Stderr)
	}

	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newEcosystemCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
