package ecosystem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mcpvet/internal/config"
	"mcpvet/internal/probe"
	"mcpvet/pkg/logging"
)

// engineDeadlineSlack is added to the engine's own timeout budget so the
// engine gets to report a timeout itself before we kill it.
const engineDeadlineSlack = 10 * time.Second

// directTestTypes are the probe categories a direct validation runs, in a
// fixed order so results line up across servers.
var directTestTypes = []string{
	probe.TestBasicConnection,
	probe.TestToolExecution,
	probe.TestResourceAccess,
	probe.TestErrorHandling,
	probe.TestTransportCompat,
}

// engineReport is the document an external validation engine must print on
// stdout.
type engineReport struct {
	Status          string        `json:"status"`
	ComplianceScore *float64      `json:"compliance_score"`
	ProtocolVersion string        `json:"protocol_version"`
	Capabilities    []string      `json:"capabilities"`
	Issues          []probe.Issue `json:"issues"`
}

// Invoker produces conformance verdicts for live server addresses. With no
// engine configured it runs the built-in probe suite; otherwise it invokes
// the engine binary and interprets its output.
type Invoker struct {
	enginePath      string
	engineSourceDir string
	timeout         time.Duration
	deadlineSlack   time.Duration
	passThreshold   float64
	dispatcher      *probe.Dispatcher
}

// NewInvoker builds an Invoker from the loaded configuration.
func NewInvoker(cfg config.Config) *Invoker {
	timeout := cfg.Ecosystem.TimeoutSeconds
	if timeout <= 0 {
		timeout = config.DefaultProbeTimeoutSeconds
	}
	threshold := cfg.Probe.ErrorPassThreshold
	if threshold <= 0 {
		threshold = config.DefaultErrorPassThreshold
	}
	return &Invoker{
		enginePath:      cfg.Ecosystem.EnginePath,
		engineSourceDir: cfg.Ecosystem.EngineSourceDir,
		timeout:         time.Duration(timeout) * time.Second,
		deadlineSlack:   engineDeadlineSlack,
		passThreshold:   threshold,
		dispatcher:      probe.NewDispatcher(probe.Options{ErrorPassThreshold: cfg.Probe.ErrorPassThreshold}),
	}
}

// Validate runs conformance validation against a live server.
func (v *Invoker) Validate(ctx context.Context, serverURL string) Verdict {
	if v.enginePath == "" {
		return v.validateDirect(ctx, serverURL)
	}
	return v.validateWithEngine(ctx, serverURL)
}

// validateDirect runs the implemented probe categories and folds them into
// a single verdict.
func (v *Invoker) validateDirect(ctx context.Context, serverURL string) Verdict {
	timeoutSecs := int(v.timeout / time.Second)

	passed := 0
	hasTools := false
	hasResources := false
	var transportFeatures map[string]bool
	var issues []probe.Issue

	for _, testType := range directTestTypes {
		result := v.dispatcher.Run(ctx, probe.TestRequest{
			ServerURL: serverURL,
			TestType:  testType,
			Config:    probe.TestConfig{TimeoutSeconds: timeoutSecs},
		})
		if result.Success {
			passed++
		}
		issues = append(issues, result.Issues...)
		if result.Results.ToolsFound > 0 {
			hasTools = true
		}
		if result.Results.ResourcesAccessible > 0 {
			hasResources = true
		}
		if testType == probe.TestTransportCompat && result.Compatibility != nil {
			transportFeatures = result.Compatibility.Features
		}
	}

	total := len(directTestTypes)
	score := 100 * float64(passed) / float64(total)
	status := StatusFailed
	switch {
	case passed == total:
		status = StatusCompliant
	case float64(passed) >= float64(total)*v.passThreshold:
		status = StatusPassed
	}
	logging.Info(logSubsystem, "direct validation of %s: %d/%d probes passed", serverURL, passed, total)

	var capabilities []string
	if hasTools {
		capabilities = append(capabilities, "tools")
	}
	if hasResources {
		capabilities = append(capabilities, "resources")
	}
	for _, feature := range []string{
		probe.FeatureSSETransport,
		probe.FeatureWebSocketTransport,
		probe.FeatureStdioTransport,
	} {
		if transportFeatures[feature] {
			capabilities = append(capabilities, feature)
		}
	}

	return Verdict{
		Status:          status,
		ComplianceScore: &score,
		ProtocolVersion: probe.ProtocolVersion,
		Capabilities:    capabilities,
		Issues:          issues,
	}
}

// validateWithEngine runs the external engine binary against the server and
// interprets its stdout as the verdict document. Each failure mode maps to
// a distinct status so batch reports stay root-causable.
func (v *Invoker) validateWithEngine(ctx context.Context, serverURL string) Verdict {
	if _, err := os.Stat(v.enginePath); err != nil {
		if v.engineSourceDir == "" {
			return Verdict{
				Status:       StatusBuildFailed,
				ErrorMessage: fmt.Sprintf("validation engine %s not found", v.enginePath),
			}
		}
		logging.Info(logSubsystem, "building validation engine from %s", v.engineSourceDir)
		if err := v.buildEngine(ctx); err != nil {
			return Verdict{Status: StatusBuildFailed, ErrorMessage: err.Error()}
		}
	}

	timeoutSecs := int(v.timeout / time.Second)
	runCtx, cancel := context.WithTimeout(ctx, v.timeout+v.deadlineSlack)
	defer cancel()

	cmd := exec.CommandContext(runCtx, v.enginePath, serverURL,
		"--all", "--timeout", strconv.Itoa(timeoutSecs), "--format", "json")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return Verdict{Status: StatusTimeout}
	}
	if stdout.Len() == 0 {
		if err != nil && !isExitError(err) {
			return Verdict{Status: StatusError, ErrorMessage: err.Error()}
		}
		return Verdict{
			Status:       StatusNoOutput,
			ErrorMessage: lastLines(stderr.String(), 10),
		}
	}

	var doc engineReport
	if jsonErr := json.Unmarshal(stdout.Bytes(), &doc); jsonErr != nil {
		return Verdict{
			Status: StatusParseError,
			Issues: []probe.Issue{{
				Severity:    probe.SeverityError,
				Category:    "engine",
				Description: "Unparsable engine output: " + truncateString(stdout.String(), 2000),
			}},
		}
	}

	// A non-zero exit with a well-formed document is still a verdict; the
	// document wins.
	status := doc.Status
	if status == "" {
		status = StatusUnknown
	}
	return Verdict{
		Status:          status,
		ComplianceScore: doc.ComplianceScore,
		ProtocolVersion: doc.ProtocolVersion,
		Capabilities:    doc.Capabilities,
		Issues:          doc.Issues,
	}
}

// buildEngine attempts to produce the engine binary from its configured
// source tree.
func (v *Invoker) buildEngine(ctx context.Context) error {
	dir := v.engineSourceDir
	var out string
	var err error
	switch {
	case fileExists(filepath.Join(dir, "go.mod")):
		target, absErr := filepath.Abs(v.enginePath)
		if absErr != nil {
			return fmt.Errorf("resolving engine path: %w", absErr)
		}
		out, err = runCommand(ctx, dir, "go", "build", "-o", target, "./...")
	case fileExists(filepath.Join(dir, "Cargo.toml")):
		out, err = runCommand(ctx, dir, "cargo", "build", "--release")
	default:
		return fmt.Errorf("no buildable source tree at %s", dir)
	}
	if err != nil {
		return fmt.Errorf("engine build failed: %v: %s", err, lastLines(out, 20))
	}
	if _, err := os.Stat(v.enginePath); err != nil {
		return fmt.Errorf("engine build produced no binary at %s", v.enginePath)
	}
	return nil
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func truncateString(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
