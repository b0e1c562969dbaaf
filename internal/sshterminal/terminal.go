package sshterminal

import (
	"context"
	"io"

	"github.com/xivicWon/ssh-monitor/internal/sshproxy"
)

// Dialer opens authenticated SSH connections.
type Dialer interface {
	Dial(ctx context.Context, t sshproxy.Target) (Conn, error)
}

// Conn is an authenticated SSH connection able to host a shell channel and
// one-shot exec commands.
type Conn interface {
	// OpenShell starts an interactive shell on a PTY. The channel reads
	// input from stdin and writes stdout and stderr to stdout, closing it
	// when the shell exits.
	OpenShell(ctx context.Context, pty sshproxy.PTYRequest, stdin io.Reader, stdout io.WriteCloser) (Shell, error)
	Run(ctx context.Context, cmd string) (string, error)
	IsOpen() bool
	IsAuthenticated() bool
	Close() error
}

// Shell is the interactive channel of a terminal session.
type Shell interface {
	WindowChange(cols, rows int) error
	IsOpen() bool
	Close() error
}

// SSHDialer adapts an sshproxy.Dialer to Dialer.
func SSHDialer(d *sshproxy.Dialer) Dialer {
	return sshDialer{d: d}
}

type sshDialer struct {
	d *sshproxy.Dialer
}

func (s sshDialer) Dial(ctx context.Context, t sshproxy.Target) (Conn, error) {
	c, err := s.d.Dial(ctx, t)
	if err != nil {
		return nil, err
	}
	return sshConn{c}, nil
}

type sshConn struct {
	*sshproxy.Client
}

func (c sshConn) OpenShell(ctx context.Context, pty sshproxy.PTYRequest, stdin io.Reader, stdout io.WriteCloser) (Shell, error) {
	sh, err := c.Client.OpenShell(ctx, pty, stdin, stdout)
	if err != nil {
		return nil, err
	}
	return sh, nil
}
