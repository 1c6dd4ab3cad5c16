package office

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrOfficeUnavailable = errors.New("office process unavailable")
	ErrConversionFailed  = errors.New("conversion failed")
)

// Restarter is the part of the Supervisor the bridge needs.
type Restarter interface {
	Restart(ctx context.Context) error
}

type BridgeOptions struct {
	// Host and Port address the unoserver XML-RPC listener.
	Host           string
	Port           int
	UnoconvertPath string
	// Timeout bounds one conversion call.
	Timeout     time.Duration
	DialTimeout time.Duration
}

// Bridge drives conversions through unoserver. Each call runs unoconvert, an
// XML-RPC client of unoserver; the bridge owns connection checks, the single
// reconnect and serialization of calls into the shared process.
type Bridge struct {
	opts   BridgeOptions
	sup    Restarter
	exec   executor
	dial   func(ctx context.Context, network, addr string) (net.Conn, error)
	sem    chan struct{}
	logger *slog.Logger
}

func NewBridge(opts BridgeOptions, sup Restarter, logger *slog.Logger) *Bridge {
	return newBridge(opts, sup, defaultExec, logger)
}

func newBridge(opts BridgeOptions, sup Restarter, exec executor, logger *slog.Logger) *Bridge {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &net.Dialer{Timeout: opts.DialTimeout}
	return &Bridge{
		opts:   opts,
		sup:    sup,
		exec:   exec,
		dial:   d.DialContext,
		sem:    make(chan struct{}, 1),
		logger: logger.With("component", "office_bridge"),
	}
}

func (b *Bridge) addr() string {
	return net.JoinHostPort(b.opts.Host, strconv.Itoa(b.opts.Port))
}

// Ping opens and closes one socket to the XML-RPC port. It never restarts.
func (b *Bridge) Ping(ctx context.Context) error {
	conn, err := b.dial(ctx, "tcp", b.addr())
	if err != nil {
		return err
	}
	return conn.Close()
}

// Connect checks the XML-RPC port and, on failure, restarts the office
// process once before trying a second and final time.
func (b *Bridge) Connect(ctx context.Context) error {
	err := b.Ping(ctx)
	if err == nil {
		return nil
	}
	b.logger.ErrorContext(ctx, "failed to connect to office process", "addr", b.addr(), "error", err)

	if rerr := b.sup.Restart(ctx); rerr != nil {
		return fmt.Errorf("%w: restart: %v", ErrOfficeUnavailable, rerr)
	}
	if err := b.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrOfficeUnavailable, err)
	}
	b.logger.InfoContext(ctx, "reconnected to office process", "addr", b.addr())
	return nil
}

// Convert loads in and stores it to out through filter f. Calls are
// serialized: the office process is shared and not safe for concurrent use.
func (b *Bridge) Convert(ctx context.Context, in, out string, f Filter) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()

	if err := b.Connect(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	start := time.Now()
	output, err := b.exec.Run(runCtx, b.opts.UnoconvertPath, f.args(b.opts.Host, b.opts.Port, in, out)...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v: %s", ErrConversionFailed, f.Name, err, strings.TrimSpace(string(output)))
	}

	info, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("%w: %s: no output: %v", ErrConversionFailed, f.Name, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s: empty output", ErrConversionFailed, f.Name)
	}

	b.logger.InfoContext(ctx, "document exported", "filter", f.Name, "bytes", info.Size(), "duration", time.Since(start))
	return nil
}
