package ecosystem

import (
	"context"

	"mcpvet/internal/probe"
)

const logSubsystem = "ecosystem"

// Validation statuses. The vocabulary is closed; every code path that
// produces a ValidationResult assigns exactly one of these.
const (
	// StatusCompliant means every probe category passed.
	StatusCompliant = "compliant"
	// StatusPassed means enough categories passed to clear the threshold.
	StatusPassed = "passed"
	// StatusFailed means the server answered but fell below the threshold.
	StatusFailed = "failed"
	// StatusSetupFailed means the workspace could not be provisioned.
	StatusSetupFailed = "setup_failed"
	// StatusFailedToStart means the server process died before validation.
	StatusFailedToStart = "failed_to_start"
	// StatusTimeout means validation exceeded its deadline.
	StatusTimeout = "timeout"
	// StatusError means an unexpected harness fault, not a server verdict.
	StatusError = "error"
	// StatusBuildFailed means a required build step failed.
	StatusBuildFailed = "build_failed"
	// StatusParseError means the engine produced undecodable output.
	StatusParseError = "parse_error"
	// StatusNoOutput means the engine exited without writing a document.
	StatusNoOutput = "no_output"
	// StatusUnknown is the pre-verdict placeholder.
	StatusUnknown = "unknown"
)

// successfulStatus reports whether a status counts as a successful
// validation for rate and recommendation purposes.
func successfulStatus(status string) bool {
	return status == StatusCompliant || status == StatusPassed
}

// Target identifies one implementation to validate: a display name and the
// source reference its code is fetched from.
type Target struct {
	Name string `yaml:"name"`
	Repo string `yaml:"repo"`
}

// ValidationResult is the terminal outcome of validating one target. Every
// dispatched target yields exactly one, whatever failed along the way.
type ValidationResult struct {
	ServerName      string        `json:"server_name"`
	ServerURL       string        `json:"server_url"`
	Status          string        `json:"status"`
	ComplianceScore *float64      `json:"compliance_score"`
	ProtocolVersion string        `json:"protocol_version,omitempty"`
	Capabilities    []string      `json:"capabilities"`
	Issues          []probe.Issue `json:"issues"`
	DurationMS      int64         `json:"duration_ms"`
	Timestamp       string        `json:"timestamp"`
	ErrorMessage    string        `json:"error_message,omitempty"`
}

// ProvisionConfig describes a provisioned workspace: where the source lives
// and how to run it. The workspace belongs to the Provisioner until Cleanup.
type ProvisionConfig struct {
	// ID names the environment in logs across the provision/start/stop
	// lifecycle.
	ID           string
	WorkspaceDir string
	Ecosystem    string
	StartCommand []string
	Port         int
}

// Verdict is what one validation run established about a live server,
// before the orchestrator folds in target bookkeeping.
type Verdict struct {
	Status          string
	ComplianceScore *float64
	ProtocolVersion string
	Capabilities    []string
	Issues          []probe.Issue
	ErrorMessage    string
}

// EnvironmentProvisioner prepares and tears down candidate workspaces.
type EnvironmentProvisioner interface {
	Provision(ctx context.Context, name, sourceRef string) (*ProvisionConfig, error)
	Cleanup(cfg *ProvisionConfig)
}

// ProcessSupervisor starts server processes from provisioned workspaces.
type ProcessSupervisor interface {
	Start(ctx context.Context, cfg *ProvisionConfig) (RunningServer, error)
}

// RunningServer is a started server process whose shutdown the caller owns.
type RunningServer interface {
	// Stop terminates the process. Idempotent; safe after exit.
	Stop() error
	// Output returns the captured stdout/stderr lines so far.
	Output() []string
}

// ServerValidator produces a conformance verdict for a live server address.
type ServerValidator interface {
	Validate(ctx context.Context, serverURL string) Verdict
}
