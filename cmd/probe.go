package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mcpvet/internal/config"
	"mcpvet/internal/probe"
	"mcpvet/pkg/logging"
)

var (
	probeJSON      bool
	probeTimeout   int
	probeTransport string
	probeVerbose   bool
)

// dispatchProbe runs one request through the standard dispatcher. It is a
// variable so command tests can substitute a canned result.
var dispatchProbe = func(ctx context.Context, cfg config.Config, req probe.TestRequest) probe.TestResult {
	dispatcher := probe.NewDispatcher(probe.Options{
		ErrorPassThreshold: cfg.Probe.ErrorPassThreshold,
	})
	return dispatcher.Run(ctx, req)
}

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [server-url] [test-type]",
		Short: "Run a single conformance probe against an MCP server",
		Long: `Runs one scripted conformance probe against a running MCP server and
prints the result document as JSON on stdout.

In the default mode the server URL and test type are positional
arguments. With --json a complete request document is read from stdin
instead, which is how orchestrators drive the probe suite.

Test types: basic_connection, tool_execution, resource_access,
transport_compat, error_handling.

The exit code reports harness faults only: a probe that ran and failed
still exits zero, with the verdict carried in the JSON document.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runProbe,
	}

	cmd.Flags().BoolVar(&probeJSON, "json", false, "Read the request document from stdin")
	cmd.Flags().IntVar(&probeTimeout, "timeout", 30, "Timeout in seconds for the probe")
	cmd.Flags().StringVar(&probeTransport, "transport", "http", "Transport to test (http, websocket, stdio)")
	cmd.Flags().BoolVar(&probeVerbose, "verbose", false, "Pretty-print the result document")

	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		// A broken optional config file should not block a probe run; the
		// document contract on stdout matters more.
		logging.Warn("cmd", "Using default configuration: %v", err)
		cfg = config.GetDefaultConfig()
	}
	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		logging.InitForCLI(logging.ParseLevel(cfg.LogLevel), os.Stderr)
	}

	var req probe.TestRequest
	if probeJSON {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err == nil {
			err = json.Unmarshal(data, &req)
		}
		if err != nil {
			// Callers parse stdout even on failure, so a malformed request
			// still gets a minimal result document before the non-zero exit.
			doc, _ := json.Marshal(map[string]interface{}{
				"success":       false,
				"error":         fmt.Sprintf("Invalid JSON input: %v", err),
				"results":       map[string]interface{}{},
				"issues":        []interface{}{},
				"compatibility": map[string]interface{}{},
			})
			fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return fmt.Errorf("reading request document: %w", err)
		}
	} else {
		if len(args) != 2 {
			return fmt.Errorf("requires <server-url> and <test-type> arguments (or --json with a request on stdin)")
		}
		timeout := probeTimeout
		if !cmd.Flags().Changed("timeout") && cfg.Probe.TimeoutSeconds > 0 {
			timeout = cfg.Probe.TimeoutSeconds
		}
		transport := probeTransport
		if !cmd.Flags().Changed("transport") && cfg.Probe.Transport != "" {
			transport = cfg.Probe.Transport
		}
		req = probe.TestRequest{
			ServerURL: args[0],
			TestType:  args[1],
			Config: probe.TestConfig{
				TimeoutSeconds: timeout,
				Transport:      transport,
				Verbose:        probeVerbose,
			},
		}
	}

	result := dispatchProbe(cmd.Context(), cfg, req)

	var out []byte
	var marshalErr error
	if probeVerbose {
		out, marshalErr = json.MarshalIndent(result, "", "  ")
	} else {
		out, marshalErr = json.Marshal(result)
	}
	if marshalErr != nil {
		return fmt.Errorf("encoding result document: %w", marshalErr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	return nil
}
