package ecosystem

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"mcpvet/internal/config"
	"mcpvet/internal/probe"
	"mcpvet/pkg/logging"
)

// Orchestrator runs validation targets through the provision, start,
// validate, teardown pipeline under a bounded worker pool. One target's
// failure never affects another; every dispatched target yields exactly one
// terminal ValidationResult.
type Orchestrator struct {
	provisioner EnvironmentProvisioner
	supervisor  ProcessSupervisor
	validator   ServerValidator
	settings    config.EcosystemSettings
	runID       string
}

// NewOrchestrator wires the pipeline collaborators together.
func NewOrchestrator(provisioner EnvironmentProvisioner, supervisor ProcessSupervisor, validator ServerValidator, settings config.EcosystemSettings) *Orchestrator {
	return &Orchestrator{
		provisioner: provisioner,
		supervisor:  supervisor,
		validator:   validator,
		settings:    settings,
		runID:       uuid.New().String(),
	}
}

// RunID identifies this validation run in logs and reports.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// ValidateAll validates every target and returns one result per target, in
// target order. Workers hold their slot from provisioning until teardown
// has completed, so at most MaxConcurrent environments exist at once.
func (o *Orchestrator) ValidateAll(ctx context.Context, targets []Target) []ValidationResult {
	results := make([]ValidationResult, len(targets))
	if len(targets) == 0 {
		return results
	}

	type job struct {
		index  int
		target Target
	}
	jobs := make(chan job, len(targets))
	for i, target := range targets {
		jobs <- job{index: i, target: target}
	}
	close(jobs)

	workers := o.settings.MaxConcurrent
	if workers <= 0 {
		workers = config.DefaultMaxConcurrent
	}
	if workers > len(targets) {
		workers = len(targets)
	}
	logging.Info(logSubsystem, "validation run %s: %d targets, %d workers", o.runID, len(targets), workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				// Each job writes only its own slot.
				results[j.index] = o.validateTarget(ctx, j.target)
			}
		}()
	}
	wg.Wait()

	return results
}

// validateTarget runs one target through the full pipeline. Teardown is
// deferred so it runs on every path, including panics, which are recovered
// here and converted to an error result.
func (o *Orchestrator) validateTarget(ctx context.Context, target Target) (result ValidationResult) {
	start := time.Now()
	result = ValidationResult{
		ServerName: target.Name,
		ServerURL:  target.Repo,
		Status:     StatusUnknown,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error(logSubsystem, nil, "validation of %s panicked: %v", target.Name, r)
			result.Status = StatusError
			result.ErrorMessage = "Unexpected error during validation"
			result.Issues = append(result.Issues, probe.Issue{
				Severity:    probe.SeverityError,
				Category:    "orchestrator",
				Description: fmt.Sprintf("Validation failed: %v", r),
				Trace:       string(debug.Stack()),
			})
		}
		result.DurationMS = time.Since(start).Milliseconds()
	}()

	logging.Info(logSubsystem, "validating %s from %s", target.Name, target.Repo)

	cfg, err := o.provisioner.Provision(ctx, target.Name, target.Repo)
	if err != nil {
		logging.Error(logSubsystem, err, "provisioning %s failed", target.Name)
		if errors.Is(err, ErrBuildFailed) {
			result.Status = StatusBuildFailed
			result.ErrorMessage = "Build failed"
		} else {
			result.Status = StatusSetupFailed
			result.ErrorMessage = "Failed to setup test environment"
		}
		result.Issues = append(result.Issues, probe.Issue{
			Severity:    probe.SeverityError,
			Category:    "provisioning",
			Description: err.Error(),
		})
		return result
	}
	defer o.teardown(cfg)

	server, err := o.supervisor.Start(ctx, cfg)
	if err != nil {
		logging.Error(logSubsystem, err, "server for %s failed to start", target.Name)
		result.Status = StatusFailedToStart
		result.ErrorMessage = "Server process failed to start"
		result.Issues = append(result.Issues, probe.Issue{
			Severity:    probe.SeverityError,
			Category:    "startup",
			Description: err.Error(),
		})
		return result
	}
	defer func() {
		if stopErr := server.Stop(); stopErr != nil {
			logging.Warn(logSubsystem, "stopping server for %s: %v", target.Name, stopErr)
		}
	}()

	port := cfg.Port
	if port <= 0 {
		port = defaultServerPort
	}
	serverURL := fmt.Sprintf("http://localhost:%d", port)
	result.ServerURL = serverURL

	verdict := o.validator.Validate(ctx, serverURL)
	result.Status = verdict.Status
	result.ComplianceScore = verdict.ComplianceScore
	result.ProtocolVersion = verdict.ProtocolVersion
	result.Capabilities = verdict.Capabilities
	result.Issues = append(result.Issues, verdict.Issues...)
	result.ErrorMessage = verdict.ErrorMessage
	return result
}

func (o *Orchestrator) teardown(cfg *ProvisionConfig) {
	if o.settings.KeepWorkspaces {
		logging.Info(logSubsystem, "keeping workspace %s", cfg.WorkspaceDir)
		return
	}
	o.provisioner.Cleanup(cfg)
}
