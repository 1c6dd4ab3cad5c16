package office

import (
	"context"
	"os/exec"
)

// Process is a started child process.
type Process interface {
	Pid() int
	Wait() error
	Kill() error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	// Run executes name to completion and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches name without waiting for it.
	Start(name string, args ...string) (Process, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() // #nosec G204 -- binary paths come from service config
}

func (o *osExecutor) Start(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...) // #nosec G204 -- binary paths come from service config
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Pid() int    { return p.cmd.Process.Pid }
func (p *osProcess) Wait() error { return p.cmd.Wait() }
func (p *osProcess) Kill() error { return p.cmd.Process.Kill() }

var defaultExec = &osExecutor{}
