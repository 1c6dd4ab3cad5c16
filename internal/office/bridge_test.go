package office

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBridge(t *testing.T, exec *fakeExec, sup Restarter, d *switchDialer) *Bridge {
	t.Helper()
	b := newBridge(BridgeOptions{
		Host:           "127.0.0.1",
		Port:           2003,
		UnoconvertPath: "unoconvert",
		Timeout:        time.Second,
	}, sup, exec, nil)
	b.dial = d.dial
	return b
}

func writeOutput(content string) func(ctx context.Context, name string, args []string) ([]byte, error) {
	return func(ctx context.Context, name string, args []string) ([]byte, error) {
		out := args[len(args)-1]
		return nil, os.WriteFile(out, []byte(content), 0o600)
	}
}

func TestBridge_PingRealSocket(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	b := NewBridge(BridgeOptions{Host: "127.0.0.1", Port: port}, &fakeRestarter{}, nil)
	assert.NoError(t, b.Ping(context.Background()))

	ln.Close()
	assert.Error(t, b.Ping(context.Background()))
}

func TestBridge_Connect_NoRestartWhenUp(t *testing.T) {
	d := &switchDialer{up: true}
	sup := &fakeRestarter{}
	b := testBridge(t, &fakeExec{}, sup, d)

	assert.NoError(t, b.Connect(context.Background()))
	assert.Equal(t, 0, sup.count())
}

func TestBridge_Connect_RestartsOnce(t *testing.T) {
	d := &switchDialer{}
	sup := &fakeRestarter{onRun: func() { d.setUp(true) }}
	b := testBridge(t, &fakeExec{}, sup, d)

	assert.NoError(t, b.Connect(context.Background()))
	assert.Equal(t, 1, sup.count())
	assert.Equal(t, 2, d.dials)
}

func TestBridge_Connect_GivesUpAfterOneRestart(t *testing.T) {
	d := &switchDialer{}
	sup := &fakeRestarter{}
	b := testBridge(t, &fakeExec{}, sup, d)

	err := b.Connect(context.Background())
	assert.ErrorIs(t, err, ErrOfficeUnavailable)
	assert.Equal(t, 1, sup.count())
	assert.Equal(t, 2, d.dials)
}

func TestBridge_Connect_RestartError(t *testing.T) {
	d := &switchDialer{}
	sup := &fakeRestarter{err: errors.New("soffice missing")}
	b := testBridge(t, &fakeExec{}, sup, d)

	err := b.Connect(context.Background())
	assert.ErrorIs(t, err, ErrOfficeUnavailable)
	assert.Contains(t, err.Error(), "soffice missing")
}

func TestBridge_Convert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	out := filepath.Join(dir, "out.html")
	require.NoError(t, os.WriteFile(in, []byte("PK"), 0o600))

	exec := &fakeExec{runFn: writeOutput("<html><head></head><body>hi</body></html>")}
	b := testBridge(t, exec, &fakeRestarter{}, &switchDialer{up: true})

	require.NoError(t, b.Convert(context.Background(), in, out, DocxToHTML))

	calls := exec.runCalls("unoconvert")
	require.Len(t, calls, 1)
	args := strings.Join(calls[0].args, " ")
	assert.Contains(t, args, "--host 127.0.0.1 --port 2003")
	assert.Contains(t, args, "--convert-to html --filter HTML (StarWriter)")
	assert.Contains(t, args, "--filter-options CharacterSet=UTF-8")
	assert.Equal(t, []string{in, out}, calls[0].args[len(calls[0].args)-2:])
}

func TestBridge_Convert_HTMLToDocxUsesInputFilter(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExec{runFn: writeOutput("PK\x03\x04")}
	b := testBridge(t, exec, &fakeRestarter{}, &switchDialer{up: true})

	require.NoError(t, b.Convert(context.Background(), filepath.Join(dir, "a.html"), filepath.Join(dir, "a.docx"), HTMLToDocx))

	args := strings.Join(exec.runCalls("unoconvert")[0].args, " ")
	assert.Contains(t, args, "--input-filter HTML (StarWriter) --convert-to docx --filter MS Word 2007 XML")
	assert.NotContains(t, args, "--filter-options")
}

func TestBridge_Convert_CommandFails(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExec{runFn: func(ctx context.Context, name string, args []string) ([]byte, error) {
		return []byte("UnoException: load failed\n"), errors.New("exit status 1")
	}}
	b := testBridge(t, exec, &fakeRestarter{}, &switchDialer{up: true})

	err := b.Convert(context.Background(), filepath.Join(dir, "in.docx"), filepath.Join(dir, "out.html"), DocxToHTML)
	assert.ErrorIs(t, err, ErrConversionFailed)
	assert.Contains(t, err.Error(), "load failed")
}

func TestBridge_Convert_EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExec{runFn: writeOutput("")}
	b := testBridge(t, exec, &fakeRestarter{}, &switchDialer{up: true})

	err := b.Convert(context.Background(), filepath.Join(dir, "in.docx"), filepath.Join(dir, "out.html"), DocxToHTML)
	assert.ErrorIs(t, err, ErrConversionFailed)
}

func TestBridge_Convert_OfficeDown(t *testing.T) {
	exec := &fakeExec{}
	b := testBridge(t, exec, &fakeRestarter{}, &switchDialer{})

	err := b.Convert(context.Background(), "in", "out", DocxToHTML)
	assert.ErrorIs(t, err, ErrOfficeUnavailable)
	assert.Empty(t, exec.runCalls("unoconvert"))
}

func TestBridge_Convert_Serialized(t *testing.T) {
	dir := t.TempDir()
	var active, maxActive int32
	exec := &fakeExec{runFn: func(ctx context.Context, name string, args []string) ([]byte, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil, os.WriteFile(args[len(args)-1], []byte("x"), 0o600)
	}}
	b := testBridge(t, exec, &fakeRestarter{}, &switchDialer{up: true})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := filepath.Join(dir, "out"+string(rune('a'+i))+".html")
			assert.NoError(t, b.Convert(context.Background(), "in.docx", out, DocxToHTML))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
	assert.Len(t, exec.runCalls("unoconvert"), 5)
}

func TestBridge_Convert_WaitRespectsContext(t *testing.T) {
	b := testBridge(t, &fakeExec{}, &fakeRestarter{}, &switchDialer{up: true})
	b.sem <- struct{}{}
	defer func() { <-b.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Convert(ctx, "in", "out", DocxToHTML)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
