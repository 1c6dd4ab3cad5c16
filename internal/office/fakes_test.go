package office

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

type fakeProc struct {
	pid    int
	exit   chan struct{}
	once   sync.Once
	killed bool
	mu     sync.Mutex
}

func newFakeProc(pid int) *fakeProc {
	return &fakeProc{pid: pid, exit: make(chan struct{})}
}

func (p *fakeProc) Pid() int { return p.pid }

func (p *fakeProc) Wait() error {
	<-p.exit
	return nil
}

func (p *fakeProc) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.finish()
	return nil
}

func (p *fakeProc) finish() { p.once.Do(func() { close(p.exit) }) }

func (p *fakeProc) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

type call struct {
	name string
	args []string
}

type fakeExec struct {
	mu       sync.Mutex
	runs     []call
	starts   []call
	procs    []*fakeProc
	runFn    func(ctx context.Context, name string, args []string) ([]byte, error)
	startErr error
}

func (f *fakeExec) LookPath(file string) (string, error) { return "/usr/bin/" + file, nil }

func (f *fakeExec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.runs = append(f.runs, call{name: name, args: args})
	fn := f.runFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, name, args)
	}
	return nil, nil
}

func (f *fakeExec) Start(name string, args ...string) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, call{name: name, args: args})
	if f.startErr != nil {
		return nil, f.startErr
	}
	p := newFakeProc(1000 + len(f.procs))
	f.procs = append(f.procs, p)
	return p, nil
}

func (f *fakeExec) runCalls(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.runs {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

type fakeRestarter struct {
	mu    sync.Mutex
	calls int
	err   error
	onRun func()
}

func (r *fakeRestarter) Restart(ctx context.Context) error {
	r.mu.Lock()
	r.calls++
	fn := r.onRun
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
	return r.err
}

func (r *fakeRestarter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// switchDialer fails until up is set.
type switchDialer struct {
	mu       sync.Mutex
	up       bool
	dials    int
	lastAddr string
}

func (d *switchDialer) setUp(v bool) {
	d.mu.Lock()
	d.up = v
	d.mu.Unlock()
}

func (d *switchDialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.lastAddr = addr
	if !d.up {
		return nil, errors.New("connection refused")
	}
	c1, c2 := net.Pipe()
	_ = c2.Close()
	return c1, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }
