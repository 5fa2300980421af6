package config

// Config is the top-level configuration structure for mcpvet.
type Config struct {
	LogLevel  string            `yaml:"logLevel,omitempty"` // "debug", "info", "warn", "error"
	Probe     ProbeSettings     `yaml:"probe"`
	Ecosystem EcosystemSettings `yaml:"ecosystem"`
}

// ProbeSettings controls how individual conformance probes run.
type ProbeSettings struct {
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"` // Per-probe timeout (default: 30)
	Transport      string `yaml:"transport,omitempty"`      // Transport hint: "http", "websocket", "stdio"

	// ErrorPassThreshold is the fraction of adversarial error-handling checks
	// a server must pass for the error_handling probe to succeed.
	ErrorPassThreshold float64 `yaml:"errorPassThreshold,omitempty"`
}

// EcosystemSettings controls ecosystem-wide batch validation runs.
type EcosystemSettings struct {
	MaxConcurrent       int    `yaml:"maxConcurrent,omitempty"`       // Validation concurrency bound (default: 3)
	TimeoutSeconds      int    `yaml:"timeoutSeconds,omitempty"`      // Per-target validation timeout (default: 30)
	StartupGraceSeconds int    `yaml:"startupGraceSeconds,omitempty"` // Wait before the first liveness check
	ShutdownWaitSeconds int    `yaml:"shutdownWaitSeconds,omitempty"` // Graceful termination window before SIGKILL
	EnginePath          string `yaml:"enginePath,omitempty"`          // External validation engine binary; empty runs the built-in probe suite
	EngineSourceDir     string `yaml:"engineSourceDir,omitempty"`     // Source tree to build the engine from when the binary is missing
	TargetsFile         string `yaml:"targetsFile,omitempty"`         // YAML file listing validation targets
	OutputFile          string `yaml:"outputFile,omitempty"`          // Report destination; empty prints the summary only
	KeepWorkspaces      bool   `yaml:"keepWorkspaces,omitempty"`      // Skip workspace cleanup for post-mortem inspection
}
