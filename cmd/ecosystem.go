package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mcpvet/internal/config"
	"mcpvet/internal/ecosystem"
	"mcpvet/pkg/logging"
)

var (
	ecosystemEngine         string
	ecosystemMaxConcurrent  int
	ecosystemTimeout        int
	ecosystemOutput         string
	ecosystemTargets        string
	ecosystemVerbose        bool
	ecosystemKeepWorkspaces bool
)

// validateEcosystem wires the orchestrator stack and runs the full batch. It
// is a variable so command tests can substitute a canned report.
var validateEcosystem = func(ctx context.Context, cfg config.Config, targets []ecosystem.Target) ecosystem.Report {
	provisioner := ecosystem.NewProvisioner(nil)
	supervisor := ecosystem.NewSupervisor(cfg.Ecosystem)
	invoker := ecosystem.NewInvoker(cfg)
	orchestrator := ecosystem.NewOrchestrator(provisioner, supervisor, invoker, cfg.Ecosystem)

	results := orchestrator.ValidateAll(ctx, targets)
	return ecosystem.BuildReport(orchestrator.RunID(), results)
}

func newEcosystemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ecosystem",
		Short: "Validate known MCP server implementations end to end",
		Long: `Fetches each target server implementation, provisions an isolated
workspace for it, starts the server process, validates it for protocol
conformance, and aggregates the outcomes into a summary report.

Targets default to a built-in list of known implementations; --targets
replaces the list with one read from a YAML file. With --engine an
external validation engine binary produces the per-server verdict,
otherwise the built-in probe suite runs directly.`,
		RunE: runEcosystem,
	}

	cmd.Flags().StringVar(&ecosystemEngine, "engine", "", "Path to an external validation engine binary")
	cmd.Flags().IntVar(&ecosystemMaxConcurrent, "max-concurrent", 3, "Maximum concurrent validations")
	cmd.Flags().IntVar(&ecosystemTimeout, "timeout", 30, "Timeout in seconds for each validation")
	cmd.Flags().StringVar(&ecosystemOutput, "output", "", "Output file for the JSON report")
	cmd.Flags().StringVar(&ecosystemTargets, "targets", "", "YAML file listing validation targets")
	cmd.Flags().BoolVar(&ecosystemVerbose, "verbose", false, "Enable verbose logging")
	cmd.Flags().BoolVar(&ecosystemKeepWorkspaces, "keep-workspaces", false, "Keep workspaces after validation for debugging")

	return cmd
}

func runEcosystem(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		logging.InitForCLI(logging.ParseLevel(cfg.LogLevel), os.Stderr)
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Ecosystem.TimeoutSeconds = ecosystemTimeout
	}
	if cmd.Flags().Changed("max-concurrent") {
		cfg.Ecosystem.MaxConcurrent = ecosystemMaxConcurrent
	}
	if ecosystemEngine != "" {
		cfg.Ecosystem.EnginePath = ecosystemEngine
	}
	if ecosystemKeepWorkspaces {
		cfg.Ecosystem.KeepWorkspaces = true
	}
	if ecosystemTargets == "" {
		ecosystemTargets = cfg.Ecosystem.TargetsFile
	}
	if ecosystemOutput == "" {
		ecosystemOutput = cfg.Ecosystem.OutputFile
	}
	if ecosystemVerbose {
		logging.InitForCLI(logging.LevelDebug, os.Stderr)
	}

	targets, err := ecosystem.LoadTargets(ecosystemTargets)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupts gracefully: cancel the run and let in-flight
	// validations tear their server processes down.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(cmd.OutOrStdout(), "\n🛑 Interrupt received, stopping validation...")
		cancel()
	}()

	logging.Info("cmd", "Starting MCP ecosystem validation...")

	report := validateEcosystem(ctx, cfg, targets)

	ecosystem.RenderSummary(cmd.OutOrStdout(), report)

	if ecosystemOutput != "" {
		if err := ecosystem.WriteReport(report, ecosystemOutput); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nDetailed report saved to: %s\n", ecosystemOutput)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("validation interrupted")
	}
	return nil
}
