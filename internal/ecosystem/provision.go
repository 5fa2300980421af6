package ecosystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mcpvet/pkg/logging"
)

// Ecosystem kinds the provisioner recognizes, keyed by manifest file.
const (
	EcosystemNode    = "node"
	EcosystemPython  = "python"
	EcosystemGo      = "go"
	EcosystemRust    = "rust"
	EcosystemUnknown = "unknown"
)

// defaultServerPort is assumed when a provisioned config carries no port.
const defaultServerPort = 8080

// fetchTimeout bounds the source fetch.
const fetchTimeout = 60 * time.Second

// ErrBuildFailed marks provisioning failures in a required build step, so
// callers can report them as build_failed instead of a generic setup
// failure.
var ErrBuildFailed = errors.New("build failed")

// Fetcher materializes a source tree into an existing empty directory.
type Fetcher interface {
	Fetch(ctx context.Context, sourceRef, dir string) error
}

// gitFetcher is the default Fetcher: a shallow clone of the source
// repository.
type gitFetcher struct{}

func (gitFetcher) Fetch(ctx context.Context, sourceRef, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", sourceRef, dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone %s: %v: %s", sourceRef, err, lastLines(string(out), 5))
	}
	return nil
}

// runCommand executes an external setup command in a workspace directory.
// Package-level so tests can intercept npm/pip/go/cargo invocations.
var runCommand = func(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Provisioner prepares isolated workspaces for candidate implementations.
type Provisioner struct {
	fetcher Fetcher
}

// NewProvisioner builds a Provisioner. A nil fetcher selects the git-backed
// default.
func NewProvisioner(fetcher Fetcher) *Provisioner {
	if fetcher == nil {
		fetcher = gitFetcher{}
	}
	return &Provisioner{fetcher: fetcher}
}

// Provision creates a workspace for the named target, fetches its source,
// and derives how to install and run it. On any failure after the workspace
// exists, the workspace is removed before the error is returned.
func (p *Provisioner) Provision(ctx context.Context, name, sourceRef string) (*ProvisionConfig, error) {
	dir, err := os.MkdirTemp("", "mcp_test_"+sanitizeName(name)+"_")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	logging.Info(logSubsystem, "fetching %s into %s", sourceRef, dir)
	if err := p.fetcher.Fetch(ctx, sourceRef, dir); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("fetching source: %w", err)
	}

	cfg, err := p.configure(ctx, dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	cfg.ID = uuid.New().String()
	logging.Info(logSubsystem, "provisioned %s environment %s in %s", cfg.Ecosystem, cfg.ID, dir)
	return cfg, nil
}

// Cleanup removes a provisioned workspace.
func (p *Provisioner) Cleanup(cfg *ProvisionConfig) {
	if cfg == nil || cfg.WorkspaceDir == "" {
		return
	}
	if err := os.RemoveAll(cfg.WorkspaceDir); err != nil {
		logging.Warn(logSubsystem, "removing workspace %s: %v", cfg.WorkspaceDir, err)
	}
}

// configure classifies the fetched tree by manifest, installs its
// dependencies, and derives the start command. A tree whose ecosystem is
// recognized but whose entry point is not leaves StartCommand empty; the
// supervisor reports that as a startup failure, which is more specific than
// failing provisioning.
func (p *Provisioner) configure(ctx context.Context, dir string) (*ProvisionConfig, error) {
	switch {
	case fileExists(filepath.Join(dir, "package.json")):
		return p.configureNode(ctx, dir)
	case fileExists(filepath.Join(dir, "pyproject.toml")) || fileExists(filepath.Join(dir, "setup.py")):
		return p.configurePython(ctx, dir)
	case fileExists(filepath.Join(dir, "go.mod")):
		return p.configureGo(ctx, dir)
	case fileExists(filepath.Join(dir, "Cargo.toml")):
		return p.configureRust(ctx, dir)
	}
	return nil, fmt.Errorf("no supported ecosystem manifest in %s", dir)
}

func (p *Provisioner) configureNode(ctx context.Context, dir string) (*ProvisionConfig, error) {
	cfg := &ProvisionConfig{WorkspaceDir: dir, Ecosystem: EcosystemNode, Port: 3000}

	if out, err := runCommand(ctx, dir, "npm", "install"); err != nil {
		// Many servers still start with partial dependencies; let the
		// supervisor be the judge.
		logging.Warn(logSubsystem, "npm install failed: %v: %s", err, lastLines(out, 5))
	}

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, fmt.Errorf("reading package.json: %w", err)
	}
	var manifest struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing package.json: %w", err)
	}

	if _, ok := manifest.Scripts["start"]; ok {
		cfg.StartCommand = []string{"npm", "start"}
	} else if _, ok := manifest.Scripts["dev"]; ok {
		cfg.StartCommand = []string{"npm", "run", "dev"}
	}
	return cfg, nil
}

func (p *Provisioner) configurePython(ctx context.Context, dir string) (*ProvisionConfig, error) {
	cfg := &ProvisionConfig{WorkspaceDir: dir, Ecosystem: EcosystemPython, Port: defaultServerPort}

	if out, err := runCommand(ctx, dir, "python", "-m", "pip", "install", "-e", "."); err != nil {
		logging.Warn(logSubsystem, "pip install failed: %v: %s", err, lastLines(out, 5))
	}

	// Installed package layout first.
	if pkgs, _ := filepath.Glob(filepath.Join(dir, "src", "mcp_*")); len(pkgs) > 0 {
		for _, pkg := range pkgs {
			if info, err := os.Stat(pkg); err == nil && info.IsDir() {
				cfg.StartCommand = []string{"python", "-m", filepath.Base(pkg)}
				break
			}
		}
	}

	// A runnable example server beats a bare package entry point.
	if servers, _ := filepath.Glob(filepath.Join(dir, "examples", "*server*.py")); len(servers) > 0 {
		cfg.StartCommand = []string{"python", servers[0]}
	}
	return cfg, nil
}

func (p *Provisioner) configureGo(ctx context.Context, dir string) (*ProvisionConfig, error) {
	cfg := &ProvisionConfig{WorkspaceDir: dir, Ecosystem: EcosystemGo, Port: defaultServerPort}

	if out, err := runCommand(ctx, dir, "go", "build", "-o", "./bin/server", "./..."); err != nil {
		return nil, fmt.Errorf("%w: go build: %s", ErrBuildFailed, lastLines(out, 20))
	}
	cfg.StartCommand = []string{"./bin/server"}
	return cfg, nil
}

func (p *Provisioner) configureRust(ctx context.Context, dir string) (*ProvisionConfig, error) {
	cfg := &ProvisionConfig{WorkspaceDir: dir, Ecosystem: EcosystemRust, Port: defaultServerPort}

	if out, err := runCommand(ctx, dir, "cargo", "build", "--release"); err != nil {
		return nil, fmt.Errorf("%w: cargo build: %s", ErrBuildFailed, lastLines(out, 20))
	}
	cfg.StartCommand = []string{"cargo", "run", "--release"}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// sanitizeName makes a target name safe for use in a directory name.
func sanitizeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	sanitized := replacer.Replace(name)
	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}
	return sanitized
}

// lastLines returns the trailing n lines of command output, where the part
// worth surfacing usually lives.
func lastLines(out string, n int) string {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
