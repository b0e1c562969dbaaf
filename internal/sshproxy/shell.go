package sshproxy

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/ssh"
)

// Shell is a running PTY-backed login shell.
type Shell struct {
	session   *ssh.Session
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func newShell(session *ssh.Session, stdout io.Closer) *Shell {
	s := &Shell{
		session: session,
		done:    make(chan struct{}),
	}
	go func() {
		session.Wait()
		s.closed.Store(true)
		// Wait returns once stdout and stderr are fully copied, so closing
		// here hands EOF to the reader only after the last byte.
		stdout.Close()
		close(s.done)
	}()
	return s
}

// WindowChange informs the remote PTY of new terminal dimensions.
func (s *Shell) WindowChange(cols, rows int) error {
	return s.session.WindowChange(rows, cols)
}

// IsOpen reports whether the shell channel is still open.
func (s *Shell) IsOpen() bool { return !s.closed.Load() }

// Done returns a channel closed when the remote shell has exited.
func (s *Shell) Done() <-chan struct{} { return s.done }

// Close terminates the shell channel. Closing twice is a no-op.
func (s *Shell) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.session.Close()
		if errors.Is(err, io.EOF) {
			err = nil
		}
	})
	return err
}
