package config

// Named defaults for the tunables that used to float around as magic numbers.
// Every one of them can be overridden via config file or command-line flag.
const (
	// DefaultProbeTimeoutSeconds bounds each probe's scripted exchange.
	DefaultProbeTimeoutSeconds = 30

	// DefaultTransport is the transport hint used when the caller gives none.
	DefaultTransport = "http"

	// DefaultErrorPassThreshold is the fraction of the adversarial
	// error-handling checks a server must pass. 4 of 5 checks passing still
	// counts as conformant error handling.
	DefaultErrorPassThreshold = 0.8

	// DefaultMaxConcurrent bounds how many ecosystem validations run at once.
	DefaultMaxConcurrent = 3

	// DefaultStartupGraceSeconds is how long a freshly spawned server gets
	// before the first liveness check.
	DefaultStartupGraceSeconds = 3

	// DefaultShutdownWaitSeconds is the graceful termination window before a
	// supervised process is force-killed.
	DefaultShutdownWaitSeconds = 5
)

// GetDefaultConfig returns the built-in configuration. mcpvet works
// out-of-the-box with these values; user and project config files only
// override what they name.
func GetDefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Probe: ProbeSettings{
			TimeoutSeconds:     DefaultProbeTimeoutSeconds,
			Transport:          DefaultTransport,
			ErrorPassThreshold: DefaultErrorPassThreshold,
		},
		Ecosystem: EcosystemSettings{
			MaxConcurrent:       DefaultMaxConcurrent,
			TimeoutSeconds:      DefaultProbeTimeoutSeconds,
			StartupGraceSeconds: DefaultStartupGraceSeconds,
			ShutdownWaitSeconds: DefaultShutdownWaitSeconds,
		},
	}
}
