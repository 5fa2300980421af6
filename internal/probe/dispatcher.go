package probe

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"mcpvet/pkg/logging"
)

const logSubsystem = "probe"

// DefaultErrorPassThreshold is the fraction of adversarial error-handling
// checks a server must pass when no override is configured.
const DefaultErrorPassThreshold = 0.8

// Probe is one scripted protocol exchange plus its scoring logic for a
// single behavior category.
type Probe interface {
	Name() string
	Run(ctx context.Context, req TestRequest) TestResult
}

// Options tunes probe behavior. The zero value selects the documented
// defaults.
type Options struct {
	// ErrorPassThreshold overrides DefaultErrorPassThreshold when positive.
	ErrorPassThreshold float64
}

// Dispatcher maps test type identifiers to probes and normalizes every
// outcome, including probe-internal faults, into a TestResult. The probe
// table is fixed at construction; adding a probe is a closed-set extension.
type Dispatcher struct {
	probes        map[string]Probe
	unimplemented map[string]bool
}

// NewDispatcher builds the static probe registry.
func NewDispatcher(opts Options) *Dispatcher {
	threshold := opts.ErrorPassThreshold
	if threshold <= 0 {
		threshold = DefaultErrorPassThreshold
	}

	probes := map[string]Probe{}
	for _, p := range []Probe{
		&connectionProbe{},
		&toolProbe{},
		&resourceProbe{},
		&transportProbe{},
		&errorHandlingProbe{passThreshold: threshold},
	} {
		probes[p.Name()] = p
	}

	return &Dispatcher{
		probes: probes,
		// Known categories without probe coverage yet. They answer with a
		// warning so missing harness coverage is never mistaken for a
		// server defect.
		unimplemented: map[string]bool{
			TestPromptHandling: true,
			TestNotifications:  true,
			TestOAuthAuth:      true,
		},
	}
}

// TestTypes returns every identifier the dispatcher accepts, implemented or
// not.
func (d *Dispatcher) TestTypes() []string {
	types := make([]string, 0, len(d.probes)+len(d.unimplemented))
	for name := range d.probes {
		types = append(types, name)
	}
	for name := range d.unimplemented {
		types = append(types, name)
	}
	return types
}

// Run executes the probe mapped to the request's test type. It never
// panics: unknown types, unimplemented types and probe-internal faults all
// come back as TestResults.
func (d *Dispatcher) Run(ctx context.Context, req TestRequest) (result TestResult) {
	logUnknownParams(req.Config.Params)

	if d.unimplemented[req.TestType] {
		logging.Warn(logSubsystem, "test %s has no probe implementation", req.TestType)
		return unimplementedResult(req.TestType)
	}

	p, ok := d.probes[req.TestType]
	if !ok {
		logging.Error(logSubsystem, nil, "unknown test type %q", req.TestType)
		return unknownTypeResult(req.TestType)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.Error(logSubsystem, nil, "probe %s panicked: %v", req.TestType, r)
			result = panicResult(r, debug.Stack())
			result.DurationMS = time.Since(start).Milliseconds()
		}
	}()

	logging.Debug(logSubsystem, "running %s against %s", req.TestType, req.ServerURL)
	result = p.Run(ctx, req)
	result.DurationMS = time.Since(start).Milliseconds()
	return result
}

// logUnknownParams implements the ignored-and-logged policy for the
// free-form params block. No probe consumes params today, so every key is
// surfaced; documented keys get removed from this loop as they are added.
func logUnknownParams(params map[string]interface{}) {
	for key := range params {
		logging.Debug(logSubsystem, "ignoring unknown config param %q", key)
	}
}

func unknownTypeResult(testType string) TestResult {
	return TestResult{
		Success: false,
		Error:   fmt.Sprintf("Unknown test type: %s", testType),
		Issues: []Issue{
			{
				Severity:    SeverityError,
				Category:    "test_runner",
				Description: fmt.Sprintf("Test type '%s' not found", testType),
			},
		},
		Compatibility: unknownCompatibility(),
	}
}

func unimplementedResult(testType string) TestResult {
	return TestResult{
		Success: false,
		Results: Counters{ErrorsEncountered: 1},
		Error:   fmt.Sprintf("Test %s not implemented", testType),
		Issues: []Issue{
			{
				Severity:    SeverityWarning,
				Category:    "test_runner",
				Description: fmt.Sprintf("Test %s not implemented yet", testType),
			},
		},
		Compatibility: newCompatibility(staticFeatures(true)),
	}
}

func panicResult(v interface{}, stack []byte) TestResult {
	return TestResult{
		Success: false,
		Results: Counters{ErrorsEncountered: 1},
		Error:   fmt.Sprintf("%v", v),
		Issues: []Issue{
			{
				Severity:    SeverityError,
				Category:    "test_runner",
				Description: fmt.Sprintf("Test execution failed: %v", v),
				Trace:       string(stack),
			},
		},
		Compatibility: unknownCompatibility(),
	}
}
