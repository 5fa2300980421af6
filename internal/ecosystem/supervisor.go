package ecosystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"mcpvet/internal/config"
	"mcpvet/pkg/logging"
)

// killWait bounds how long Stop waits for the process to disappear after
// SIGKILL.
const killWait = 2 * time.Second

// logCapture collects a child process's stdout and stderr through pipes so
// startup failures can be diagnosed from the output that preceded them.
// Lines from both streams interleave in arrival order.
type logCapture struct {
	stdoutWriter *io.PipeWriter
	stderrWriter *io.PipeWriter
	lines        []string
	mu           sync.RWMutex
	wg           sync.WaitGroup
}

func newLogCapture() *logCapture {
	stdoutReader, stdoutWriter := io.Pipe()
	stderrReader, stderrWriter := io.Pipe()

	lc := &logCapture{
		stdoutWriter: stdoutWriter,
		stderrWriter: stderrWriter,
	}
	lc.wg.Add(2)
	go lc.capture(stdoutReader, "stdout")
	go lc.capture(stderrReader, "stderr")
	return lc
}

func (lc *logCapture) capture(reader io.Reader, stream string) {
	defer lc.wg.Done()

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		lc.mu.Lock()
		lc.lines = append(lc.lines, stream+": "+scanner.Text())
		lc.mu.Unlock()
	}
}

// close closes the capture pipes and waits for the readers to drain.
func (lc *logCapture) close() {
	lc.stdoutWriter.Close()
	lc.stderrWriter.Close()
	lc.wg.Wait()
}

func (lc *logCapture) snapshot() []string {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	out := make([]string, len(lc.lines))
	copy(out, lc.lines)
	return out
}

// Supervisor starts server processes from provisioned workspaces and owns
// their shutdown.
type Supervisor struct {
	startupGrace time.Duration
	shutdownWait time.Duration
}

// NewSupervisor builds a Supervisor from ecosystem settings, falling back
// to the documented defaults for unset durations.
func NewSupervisor(settings config.EcosystemSettings) *Supervisor {
	grace := settings.StartupGraceSeconds
	if grace <= 0 {
		grace = config.DefaultStartupGraceSeconds
	}
	wait := settings.ShutdownWaitSeconds
	if wait <= 0 {
		wait = config.DefaultShutdownWaitSeconds
	}
	return &Supervisor{
		startupGrace: time.Duration(grace) * time.Second,
		shutdownWait: time.Duration(wait) * time.Second,
	}
}

// Start spawns the server process described by cfg in its own process
// group, waits the startup grace period, and confirms the process is still
// alive. An early exit comes back as an error carrying the captured output.
func (s *Supervisor) Start(ctx context.Context, cfg *ProvisionConfig) (RunningServer, error) {
	if len(cfg.StartCommand) == 0 {
		return nil, fmt.Errorf("no start command for %s workspace %s", cfg.Ecosystem, cfg.WorkspaceDir)
	}

	command := append([]string{}, cfg.StartCommand...)
	if cfg.Port > 0 {
		command = append(command, "--port", strconv.Itoa(cfg.Port))
	}
	logging.Info(logSubsystem, "starting server %s: %s", cfg.ID, strings.Join(command, " "))

	logs := newLogCapture()
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = cfg.WorkspaceDir
	cmd.Stdout = logs.stdoutWriter
	cmd.Stderr = logs.stderrWriter
	// Own process group, so shutdown reaches children spawned by wrappers
	// like npm or cargo.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		logs.close()
		return nil, fmt.Errorf("starting %s: %w", command[0], err)
	}

	proc := &ServerProcess{
		id:           cfg.ID,
		cmd:          cmd,
		logs:         logs,
		waitErr:      make(chan error, 1),
		shutdownWait: s.shutdownWait,
	}
	go func() {
		err := cmd.Wait()
		logs.close()
		proc.waitErr <- err
	}()

	select {
	case waitErr := <-proc.waitErr:
		if waitErr == nil {
			waitErr = errors.New("exited with status 0")
		}
		return nil, fmt.Errorf("server exited during startup: %v: %s",
			waitErr, strings.Join(tailOf(proc.Output(), 20), "\n"))
	case <-ctx.Done():
		proc.Stop()
		return nil, fmt.Errorf("waiting for server startup: %w", ctx.Err())
	case <-time.After(s.startupGrace):
	}

	logging.Debug(logSubsystem, "server %s alive after startup grace (pid %d)", cfg.ID, cmd.Process.Pid)
	return proc, nil
}

// ServerProcess is a supervised server child process.
type ServerProcess struct {
	id           string
	cmd          *exec.Cmd
	logs         *logCapture
	waitErr      chan error
	shutdownWait time.Duration
	stopOnce     sync.Once
	stopErr      error
}

// Output returns the captured stdout/stderr lines so far.
func (p *ServerProcess) Output() []string {
	return p.logs.snapshot()
}

// Stop terminates the process: SIGTERM to the process group, a bounded
// wait, then SIGKILL. Safe to call more than once and after the process
// already exited.
func (p *ServerProcess) Stop() error {
	p.stopOnce.Do(func() {
		p.stopErr = p.terminate()
	})
	return p.stopErr
}

func (p *ServerProcess) terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	select {
	case <-p.waitErr:
		return nil
	default:
	}

	pid := p.cmd.Process.Pid
	logging.Debug(logSubsystem, "stopping server %s (pid %d)", p.id, pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		// Group already gone; try the process directly.
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-p.waitErr:
		return nil
	case <-time.After(p.shutdownWait):
	}

	logging.Warn(logSubsystem, "server %s ignored SIGTERM; killing process group %d", p.id, pid)
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		_ = p.cmd.Process.Kill()
	}

	select {
	case <-p.waitErr:
	case <-time.After(killWait):
		return fmt.Errorf("server %s (pid %d) survived SIGKILL", p.id, pid)
	}
	return nil
}

// tailOf returns the trailing n entries of lines.
func tailOf(lines []string, n int) []string {
	if len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}
