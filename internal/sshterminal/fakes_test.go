package sshterminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xivicWon/ssh-monitor/internal/sshproxy"
)

type fakeShell struct {
	open      atomic.Bool
	closes    atomic.Int32
	resizeErr error

	mu      sync.Mutex
	resizes []string
	stdin   io.Reader
	stdout  io.WriteCloser
}

func (f *fakeShell) WindowChange(cols, rows int) error {
	if f.resizeErr != nil {
		return f.resizeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, fmt.Sprintf("%dx%d", cols, rows))
	return nil
}

func (f *fakeShell) IsOpen() bool { return f.open.Load() }

func (f *fakeShell) Close() error {
	f.closes.Add(1)
	f.open.Store(false)
	return nil
}

// emit writes shell output as the remote side would.
func (f *fakeShell) emit(t *testing.T, data string) {
	t.Helper()
	if _, err := f.stdout.Write([]byte(data)); err != nil {
		t.Fatalf("emit: %v", err)
	}
}

type fakeConn struct {
	open     atomic.Bool
	authed   atomic.Bool
	closes   atomic.Int32
	shell    *fakeShell
	shellErr error

	mu      sync.Mutex
	pty     sshproxy.PTYRequest
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeConn() *fakeConn {
	c := &fakeConn{shell: &fakeShell{}, outputs: map[string]string{}, errs: map[string]error{}}
	c.open.Store(true)
	c.authed.Store(true)
	c.shell.open.Store(true)
	return c
}

func (c *fakeConn) OpenShell(_ context.Context, pty sshproxy.PTYRequest, stdin io.Reader, stdout io.WriteCloser) (Shell, error) {
	if c.shellErr != nil {
		return nil, c.shellErr
	}
	c.mu.Lock()
	c.pty = pty
	c.mu.Unlock()
	c.shell.mu.Lock()
	c.shell.stdin, c.shell.stdout = stdin, stdout
	c.shell.mu.Unlock()
	return c.shell, nil
}

func (c *fakeConn) Run(_ context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, cmd)
	return c.outputs[cmd], c.errs[cmd]
}

func (c *fakeConn) runCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeConn) IsOpen() bool          { return c.open.Load() }
func (c *fakeConn) IsAuthenticated() bool { return c.authed.Load() }

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.open.Store(false)
	return nil
}

// fakeDialer hands out a fresh fakeConn per Dial, or err.
type fakeDialer struct {
	err  error
	gate chan struct{}
	prep func(*fakeConn)

	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, _ sshproxy.Target) (Conn, error) {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	if d.prep != nil {
		d.prep(c)
	}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

type published struct {
	dest    string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	notify chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{notify: make(chan struct{}, 1)}
}

func (r *recordingPublisher) Publish(dest string, payload any) {
	r.mu.Lock()
	r.events = append(r.events, published{dest, payload})
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// messages returns the TerminalMessages published on dest.
func (r *recordingPublisher) messages(dest string) []*TerminalMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*TerminalMessage
	for _, e := range r.events {
		if m, ok := e.payload.(*TerminalMessage); ok && e.dest == dest {
			out = append(out, m)
		}
	}
	return out
}

func (r *recordingPublisher) ofType(dest string, typ MessageType) []*TerminalMessage {
	var out []*TerminalMessage
	for _, m := range r.messages(dest) {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

// output concatenates every output message published on dest.
func (r *recordingPublisher) output(dest string) string {
	var b strings.Builder
	for _, m := range r.ofType(dest, TypeOutput) {
		b.WriteString(m.Data)
	}
	return b.String()
}

// waitFor blocks until cond holds or fails the test after five seconds.
func (r *recordingPublisher) waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-r.notify:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")
