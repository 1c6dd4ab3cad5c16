// Package office manages the headless LibreOffice process and the bridge used
// to drive conversions through it.
package office

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// SupervisorOptions configures how the office process is launched.
//
// The supervised process is unoserver. It starts soffice itself, listening
// for URP on UnoPort, and serves the XML-RPC API that unoconvert calls on
// Port.
type SupervisorOptions struct {
	UnoserverPath string
	SofficePath   string
	Host          string
	// Port is the unoserver XML-RPC port.
	Port int
	// UnoPort is the soffice URP port, only used between unoserver and soffice.
	UnoPort      int
	StartupDelay time.Duration
	KillGrace    time.Duration
}

func (o SupervisorOptions) args() []string {
	return []string{
		"--interface", o.Host,
		"--port", strconv.Itoa(o.Port),
		"--uno-interface", o.Host,
		"--uno-port", strconv.Itoa(o.UnoPort),
		"--executable", o.SofficePath,
	}
}

// Supervisor launches, kills and restarts the single shared unoserver and
// the soffice it owns.
// Readiness is not checked: after launch it waits a fixed StartupDelay.
type Supervisor struct {
	opts   SupervisorOptions
	exec   executor
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger

	mu   sync.Mutex
	proc Process
	done chan struct{}
}

func NewSupervisor(opts SupervisorOptions, logger *slog.Logger) *Supervisor {
	return newSupervisor(opts, defaultExec, logger)
}

func newSupervisor(opts SupervisorOptions, exec executor, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		opts:   opts,
		exec:   exec,
		sleep:  sleepContext,
		logger: logger.With("component", "office_supervisor"),
	}
}

// Start kills any stray office process, launches a fresh one and waits for
// the startup delay.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

// Restart is Stop followed by Start.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WarnContext(ctx, "restarting office process")
	s.stopLocked()
	return s.startLocked(ctx)
}

// Stop kills the supervised process. Calling it when nothing runs is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Running reports whether the supervised process has been started and not yet exited.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Supervisor) startLocked(ctx context.Context) error {
	s.killStrays(ctx)
	if err := s.sleep(ctx, s.opts.KillGrace); err != nil {
		return err
	}

	proc, err := s.exec.Start(s.opts.UnoserverPath, s.opts.args()...)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to start office process", "error", err, "path", s.opts.UnoserverPath)
		return fmt.Errorf("start office process: %w", err)
	}

	done := make(chan struct{})
	s.proc = proc
	s.done = done
	go func() {
		err := proc.Wait()
		s.logger.Info("office process exited", "pid", proc.Pid(), "error", err)
		close(done)
	}()

	if err := s.sleep(ctx, s.opts.StartupDelay); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "office process started", "pid", proc.Pid(), "port", s.opts.Port, "uno_port", s.opts.UnoPort)
	return nil
}

func (s *Supervisor) stopLocked() {
	if s.proc == nil {
		return
	}
	if err := s.proc.Kill(); err != nil {
		s.logger.Debug("kill office process", "error", err)
	}

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.logger.Warn("office process did not exit after kill", "pid", s.proc.Pid())
	}
	s.proc = nil
	s.done = nil
}

// killStrays removes unoserver and soffice processes left behind by a
// previous run, which would otherwise hold the ports.
func (s *Supervisor) killStrays(ctx context.Context) {
	for _, path := range []string{s.opts.UnoserverPath, s.opts.SofficePath} {
		pattern := filepath.Base(path)
		if _, err := s.exec.Run(ctx, "pkill", "-f", pattern); err != nil {
			// pkill exits 1 when nothing matched
			s.logger.DebugContext(ctx, "no stray process killed", "pattern", pattern, "error", err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
