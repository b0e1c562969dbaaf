// Package sshproxy provides the SSH connections that terminal sessions and
// one-shot connection checks are built on.
//
// It consolidates three concerns:
//   - Dialing (manager.go): authenticated connections to arbitrary hosts using
//     password or private-key credentials, bounded by a timeout.
//   - Channels (client.go, shell.go): PTY-backed interactive shells bound to
//     caller-supplied streams, and one-shot command execution.
//   - Failure classification (classify.go): mapping dial and handshake errors
//     to client-visible error kinds.
//
// Every connection runs a keepalive goroutine. A peer that stops answering
// keepalives is closed, which the terminal liveness sweep then observes
// through Client.IsOpen.
package sshproxy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/logutil"
	"github.com/xivicWon/ssh-monitor/internal/sshkeys"
)

const (
	// DefaultKeepaliveInterval is how often keepalive requests are sent.
	DefaultKeepaliveInterval = 30 * time.Second

	// DefaultConnectTimeout bounds dialing, handshake and authentication.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultPort is used when a target does not specify one.
	DefaultPort = 22
)

// AuthType selects how a Target authenticates.
type AuthType string

const (
	AuthPassword   AuthType = "password"
	AuthPrivateKey AuthType = "privateKey"
)

// ParseAuthType accepts the wire names "password" and "privateKey" and the
// aliases "secret" and "key".
func ParseAuthType(s string) (AuthType, bool) {
	switch strings.TrimSpace(s) {
	case "password", "secret":
		return AuthPassword, true
	case "privateKey", "key":
		return AuthPrivateKey, true
	}
	return "", false
}

// Target identifies a remote host and the credentials used to log in.
type Target struct {
	Host       string
	Port       int
	Username   string
	AuthType   AuthType
	Password   string
	PrivateKey string
	Passphrase string
}

// Addr returns host:port, defaulting the port to 22.
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

func (t Target) authMethods() ([]ssh.AuthMethod, error) {
	switch t.AuthType {
	case AuthPassword:
		if t.Password == "" {
			return nil, apperr.New(apperr.InvalidRequest, "Password is required for password authentication")
		}
		return []ssh.AuthMethod{
			ssh.Password(t.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = t.Password
				}
				return answers, nil
			}),
		}, nil
	case AuthPrivateKey:
		if strings.TrimSpace(t.PrivateKey) == "" {
			return nil, apperr.New(apperr.InvalidRequest, "Private key is required for key authentication")
		}
		signer, err := sshkeys.ParsePrivateKey(t.PrivateKey, t.Passphrase)
		if err != nil {
			return nil, &apperr.Error{Code: apperr.AuthFailed, Message: "Invalid private key format", Err: err}
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, apperr.New(apperr.InvalidRequest, fmt.Sprintf("unsupported auth type %q", t.AuthType))
}

// Dialer opens authenticated SSH connections.
type Dialer struct {
	// Timeout bounds TCP connect, handshake and authentication together.
	Timeout time.Duration
	// KeepaliveInterval is the keepalive period. Zero means DefaultKeepaliveInterval;
	// negative disables keepalives.
	KeepaliveInterval time.Duration
	// HostKeyCallback verifies server host keys. Nil accepts any key.
	HostKeyCallback ssh.HostKeyCallback
}

// NewDialer creates a Dialer with the given timeout and host key policy.
func NewDialer(timeout time.Duration, hostKeyCallback ssh.HostKeyCallback) *Dialer {
	return &Dialer{
		Timeout:         timeout,
		HostKeyCallback: hostKeyCallback,
	}
}

// Dial connects to the target and authenticates. Returned errors are
// *apperr.Error values classified by Classify.
func (d *Dialer) Dial(ctx context.Context, t Target) (*Client, error) {
	auth, err := t.authMethods()
	if err != nil {
		return nil, err
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	hostKeyCallback := d.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	cfg := &ssh.ClientConfig{
		User:            t.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := t.Addr()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classified(fmt.Errorf("dial %s: %w", addr, err))
	}

	// The handshake has no context of its own; a deadline on the socket
	// bounds it and cancellation closes the socket.
	if deadline, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { netConn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if !stop() {
		if err == nil {
			sshConn.Close()
		}
		return nil, classified(fmt.Errorf("ssh handshake with %s: %w", addr, ctx.Err()))
	}
	if err != nil {
		netConn.Close()
		return nil, classified(fmt.Errorf("ssh handshake with %s: %w", addr, err))
	}
	netConn.SetDeadline(time.Time{})

	client := newClient(ssh.NewClient(sshConn, chans, reqs), addr)

	interval := d.KeepaliveInterval
	if interval == 0 {
		interval = DefaultKeepaliveInterval
	}
	if interval > 0 {
		go client.keepalive(interval)
	}

	log.Printf("[sshproxy] connected to %s as %s", logutil.SanitizeForLog(addr), logutil.SanitizeForLog(t.Username))
	return client, nil
}

func classified(err error) error {
	code := Classify(err)
	return &apperr.Error{Code: code, Message: code.DefaultMessage(), Err: err}
}

// keepalive sends periodic keepalive requests and closes the client when the
// peer stops answering.
func (c *Client) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			// SendRequest with wantReply=true acts as a keepalive check
			_, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil)
			if err != nil {
				if !errors.Is(err, net.ErrClosed) && c.IsOpen() {
					log.Printf("[sshproxy] keepalive failed for %s: %v, closing connection", c.addr, err)
				}
				c.Close()
				return
			}
		}
	}
}
