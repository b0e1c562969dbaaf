package sshproxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/logutil"
)

// slowCommandThreshold is the duration above which command execution is logged.
const slowCommandThreshold = 500 * time.Millisecond

// Client is an authenticated SSH connection.
type Client struct {
	client *ssh.Client
	addr   string

	closed        atomic.Bool
	authenticated atomic.Bool
	closeOnce     sync.Once
	done          chan struct{}
}

func newClient(client *ssh.Client, addr string) *Client {
	c := &Client{
		client: client,
		addr:   addr,
		done:   make(chan struct{}),
	}
	// A completed handshake means the server accepted our credentials.
	c.authenticated.Store(true)

	go func() {
		client.Wait()
		c.markClosed()
	}()
	return c
}

func (c *Client) markClosed() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.authenticated.Store(false)
		close(c.done)
	})
}

// Addr returns the host:port this client is connected to.
func (c *Client) Addr() string { return c.addr }

// IsOpen reports whether the underlying transport is still open.
func (c *Client) IsOpen() bool { return !c.closed.Load() }

// IsAuthenticated reports whether the connection is still in its
// authenticated state.
func (c *Client) IsAuthenticated() bool { return c.authenticated.Load() }

// Done returns a channel closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close terminates the connection. Closing an already-closed client is a no-op.
func (c *Client) Close() error {
	if c.closed.Load() {
		return nil
	}
	c.markClosed()
	err := c.client.Close()
	if err != nil && (errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)) {
		return nil
	}
	return err
}

// PTYRequest describes the pseudo-terminal requested for a shell.
type PTYRequest struct {
	Term string
	Cols int
	Rows int
}

// OpenShell allocates a PTY and starts a login shell. The remote stdin is fed
// from stdin; remote stdout and stderr are both written to stdout, which is
// closed when the shell exits. OpenShell gives up when ctx is done.
func (c *Client) OpenShell(ctx context.Context, pty PTYRequest, stdin io.Reader, stdout io.WriteCloser) (*Shell, error) {
	type result struct {
		session *ssh.Session
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		session, err := c.startShell(pty, stdin, stdout)
		ch <- result{session, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return newShell(r.session, stdout), nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.session != nil {
				r.session.Close()
			}
		}()
		return nil, apperr.Wrap(apperr.Timeout, fmt.Errorf("open shell on %s: %w", c.addr, ctx.Err()))
	}
}

func (c *Client) startShell(pty PTYRequest, stdin io.Reader, stdout io.Writer) (*ssh.Session, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, apperr.Wrap(apperr.NetworkError, fmt.Errorf("create ssh session: %w", err))
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	if err := session.RequestPty(pty.Term, pty.Rows, pty.Cols, modes); err != nil {
		session.Close()
		return nil, apperr.Wrap(apperr.CommandFailed, fmt.Errorf("request pty: %w", err))
	}

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stdout

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, apperr.Wrap(apperr.CommandFailed, fmt.Errorf("start shell: %w", err))
	}
	return session, nil
}

// lockedBuffer lets stdout and stderr copiers share one buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Run executes cmd in a new session and returns its combined stdout and
// stderr. A non-zero exit status returns the output together with a
// COMMAND_FAILED error; ctx expiry closes the session and returns TIMEOUT.
func (c *Client) Run(ctx context.Context, cmd string) (string, error) {
	start := time.Now()

	session, err := c.client.NewSession()
	if err != nil {
		return "", apperr.Wrap(apperr.NetworkError, fmt.Errorf("open ssh session: %w", err))
	}
	defer session.Close()

	var out lockedBuffer
	session.Stdout = &out
	session.Stderr = &out

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(cmd) }()

	var execErr error
	select {
	case execErr = <-runErr:
	case <-ctx.Done():
		session.Close()
		return out.String(), apperr.Wrap(apperr.Timeout, fmt.Errorf("run %q: %w", logutil.Truncate(cmd, 80), ctx.Err()))
	}

	if elapsed := time.Since(start); elapsed > slowCommandThreshold {
		log.Printf("[sshproxy] SLOW command (%s): %s", elapsed, logutil.Truncate(cmd, 80))
	}

	if execErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(execErr, &exitErr) {
			return out.String(), apperr.Wrap(apperr.CommandFailed,
				fmt.Errorf("command exited with status %d", exitErr.ExitStatus()))
		}
		return out.String(), apperr.Wrap(apperr.CommandFailed, fmt.Errorf("run command: %w", execErr))
	}
	return out.String(), nil
}
