package probe

import (
	"fmt"
	"runtime"
	"time"
)

// ProtocolVersion is the MCP protocol revision sent in every handshake. It
// is a fixed constant, never negotiated.
const ProtocolVersion = "2024-11-05"

// clientInfo advertised in initialize requests.
const (
	clientName    = "mcpvet"
	clientVersion = "1.0.0"
)

// Test type identifiers accepted by the dispatcher.
const (
	TestBasicConnection = "basic_connection"
	TestToolExecution   = "tool_execution"
	TestResourceAccess  = "resource_access"
	TestTransportCompat = "transport_compat"
	TestErrorHandling   = "error_handling"
	TestPromptHandling  = "prompt_handling"
	TestNotifications   = "notifications"
	TestOAuthAuth       = "oauth_auth"
)

// Issue severities, graded by impact on conformance.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Feature flag names reported in Compatibility records.
const (
	FeatureSSETransport       = "sse_transport"
	FeatureWebSocketTransport = "websocket_transport"
	FeatureStdioTransport     = "stdio_transport"
	FeatureOAuthSupport       = "oauth_support"
	FeatureSamplingSupport    = "sampling_support"
	FeatureLoggingLevels      = "logging_levels"
)

// TestRequest describes one probe invocation. It is constructed per
// invocation (from the CLI or a JSON document on stdin) and consumed once.
type TestRequest struct {
	ServerURL string     `json:"server_url"`
	TestType  string     `json:"test_type"`
	Config    TestConfig `json:"config"`
}

// TestConfig carries the documented probe options. Params is free-form;
// keys the harness does not recognize are logged and ignored.
type TestConfig struct {
	TimeoutSeconds int                    `json:"timeout"`
	Transport      string                 `json:"transport"`
	Verbose        bool                   `json:"verbose"`
	Params         map[string]interface{} `json:"params,omitempty"`
}

// Timeout returns the configured per-probe deadline.
func (c TestConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Counters are the numeric observations of one probe run.
type Counters struct {
	Connected           bool `json:"connected"`
	Initialized         bool `json:"initialized"`
	ToolsFound          int  `json:"tools_found"`
	ResourcesAccessible int  `json:"resources_accessible"`
	MessagesExchanged   int  `json:"messages_exchanged"`
	ErrorsEncountered   int  `json:"errors_encountered"`
}

// Issue records one observed deviation. Issues are append-only within a
// probe run; severity "error" marks a violated must-level requirement,
// "warning" a non-conformant but usable behavior, "info" an absent optional
// feature.
type Issue struct {
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Trace       string `json:"stack_trace,omitempty"`
}

// Compatibility summarizes what the run established about the server.
// Feature flags reflect only what was actually exercised.
type Compatibility struct {
	ClientVersion    string          `json:"client_version"`
	RuntimeVersion   string          `json:"runtime_version"`
	ProtocolVersions []string        `json:"protocol_versions"`
	Features         map[string]bool `json:"features"`
}

// TestResult is the normalized outcome every probe run produces, whatever
// happened inside.
type TestResult struct {
	Success       bool           `json:"success"`
	DurationMS    int64          `json:"duration_ms"`
	Results       Counters       `json:"results"`
	Error         string         `json:"error,omitempty"`
	Issues        []Issue        `json:"issues"`
	Compatibility *Compatibility `json:"compatibility,omitempty"`
}

// tally accumulates counters and issues while a probe runs.
type tally struct {
	counters Counters
	issues   []Issue
}

func (t *tally) issue(severity, category, description string) {
	t.issues = append(t.issues, Issue{
		Severity:    severity,
		Category:    category,
		Description: description,
	})
}

func (t *tally) issuef(severity, category, format string, args ...interface{}) {
	t.issue(severity, category, fmt.Sprintf(format, args...))
}

// staticFeatures is the flag set probes report when they exercised no
// transport beyond their own channel.
func staticFeatures(stdio bool) map[string]bool {
	return map[string]bool{
		FeatureSSETransport:       false,
		FeatureWebSocketTransport: false,
		FeatureStdioTransport:     stdio,
		FeatureOAuthSupport:       false,
		FeatureSamplingSupport:    false,
		FeatureLoggingLevels:      true,
	}
}

// newCompatibility builds the record all implemented probes attach.
func newCompatibility(features map[string]bool) *Compatibility {
	return &Compatibility{
		ClientVersion:    clientVersion,
		RuntimeVersion:   runtime.Version(),
		ProtocolVersions: []string{ProtocolVersion},
		Features:         features,
	}
}

// unknownCompatibility is attached when no exchange happened at all.
func unknownCompatibility() *Compatibility {
	return &Compatibility{
		ClientVersion:    "unknown",
		RuntimeVersion:   runtime.Version(),
		ProtocolVersions: []string{},
		Features:         map[string]bool{},
	}
}
