// Package config provides configuration management for mcpvet.
//
// This package implements a layered configuration system that allows users to
// customize mcpvet's behavior through YAML files. Configuration is loaded from
// multiple sources and merged in a specific order, with later sources overriding
// earlier ones.
//
// # Configuration Layers
//
// Configuration is loaded and merged in the following order:
//
//  1. Default Configuration (embedded in binary)
//     - Provides sensible defaults for all settings
//     - Ensures mcpvet works out-of-the-box
//
//  2. User Configuration (~/.config/mcpvet/config.yaml)
//     - User-specific settings that apply to all projects
//     - Useful for personal preferences and common overrides
//
//  3. Project Configuration (./.mcpvet/config.yaml)
//     - Project-specific settings in the current directory
//     - Allows teams to share configuration via version control
//
// # Configuration Structure
//
// The configuration file uses YAML format with the following main sections:
//
//	logLevel: "info"
//
//	probe:
//	  timeoutSeconds: 30
//	  transport: "http"
//	  errorPassThreshold: 0.8
//
//	ecosystem:
//	  maxConcurrent: 3
//	  timeoutSeconds: 30
//	  startupGraceSeconds: 3
//	  shutdownWaitSeconds: 5
//	  enginePath: "/usr/local/bin/mcp-validate"
//	  targetsFile: "targets.yaml"
//	  outputFile: "validation_report.json"
//
// # Probe Settings
//
// Probe settings shape every conformance probe run:
//
//   - timeoutSeconds: deadline for one probe's scripted exchange
//   - transport: default transport hint ("http", "websocket", "stdio")
//   - errorPassThreshold: fraction of adversarial error-handling checks a
//     server must pass for the error_handling probe to succeed
//
// # Ecosystem Settings
//
// Ecosystem settings control batch validation runs:
//
//   - maxConcurrent: how many targets are validated at once; the slot is
//     held from provisioning until teardown completes
//   - enginePath: external validation engine binary; when empty the built-in
//     probe suite is used instead
//   - engineSourceDir: source tree used to build the engine when the binary
//     is missing
//   - targetsFile: YAML list of (name, url/repo) validation targets; when
//     absent the built-in known-implementations table is used
//   - keepWorkspaces: retain provisioned workspaces for post-mortems
//
// Sparse files are encouraged: zero values never override a lower layer, so
// a project config that only sets maxConcurrent leaves everything else at
// the user or built-in defaults.
package config
