package sshterminal

import (
	"strings"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/sshproxy"
)

// TerminalConfig describes the PTY the browser wants.
type TerminalConfig struct {
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
	Term string `json:"term"`
}

// ConnectRequest is the body of a connect command.
type ConnectRequest struct {
	SessionID      string          `json:"sessionId"`
	Host           string          `json:"host"`
	Port           int             `json:"port"`
	Username       string          `json:"username"`
	AuthType       string          `json:"authType"`
	Password       string          `json:"password,omitempty"`
	Secret         string          `json:"secret,omitempty"`
	PrivateKey     string          `json:"privateKey,omitempty"`
	KeyMaterial    string          `json:"keyMaterial,omitempty"`
	Passphrase     string          `json:"passphrase,omitempty"`
	TerminalConfig *TerminalConfig `json:"terminalConfig,omitempty"`

	// SourceIP is filled in by the transport for auditing.
	SourceIP string `json:"-"`
}

// Validate checks required fields and credential presence, returning an
// INVALID_REQUEST error describing the first problem found.
func (r *ConnectRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.SessionID) == "":
		return apperr.New(apperr.InvalidRequest, "Session ID is required")
	case strings.TrimSpace(r.Host) == "":
		return apperr.New(apperr.InvalidRequest, "Host is required")
	case strings.TrimSpace(r.Username) == "":
		return apperr.New(apperr.InvalidRequest, "Username is required")
	case r.Port < 0 || r.Port > 65535:
		return apperr.New(apperr.InvalidRequest, "Port must be between 1 and 65535")
	}

	auth, ok := sshproxy.ParseAuthType(r.AuthType)
	if !ok {
		return apperr.New(apperr.InvalidRequest, "Unsupported authentication type")
	}
	switch auth {
	case sshproxy.AuthPassword:
		if r.password() == "" {
			return apperr.New(apperr.InvalidRequest, "Password is required for password authentication")
		}
	case sshproxy.AuthPrivateKey:
		if strings.TrimSpace(r.privateKey()) == "" {
			return apperr.New(apperr.InvalidRequest, "Private key is required for key authentication")
		}
	}
	return nil
}

func (r *ConnectRequest) password() string {
	if r.Password != "" {
		return r.Password
	}
	return r.Secret
}

func (r *ConnectRequest) privateKey() string {
	if r.PrivateKey != "" {
		return r.PrivateKey
	}
	return r.KeyMaterial
}

// Target converts a validated request into a dial target.
func (r *ConnectRequest) Target() sshproxy.Target {
	auth, _ := sshproxy.ParseAuthType(r.AuthType)
	port := r.Port
	if port == 0 {
		port = sshproxy.DefaultPort
	}
	return sshproxy.Target{
		Host:       strings.TrimSpace(r.Host),
		Port:       port,
		Username:   r.Username,
		AuthType:   auth,
		Password:   r.password(),
		PrivateKey: r.privateKey(),
		Passphrase: r.Passphrase,
	}
}

// PTY returns the requested PTY with defaults and limits applied.
func (r *ConnectRequest) PTY() sshproxy.PTYRequest {
	pty := sshproxy.PTYRequest{Term: DefaultTerm, Cols: DefaultCols, Rows: DefaultRows}
	if tc := r.TerminalConfig; tc != nil {
		if tc.Cols > 0 {
			pty.Cols = tc.Cols
		}
		if tc.Rows > 0 {
			pty.Rows = tc.Rows
		}
		if tc.Term != "" {
			pty.Term = tc.Term
		}
	}
	pty.Cols, pty.Rows = clampSize(pty.Cols, pty.Rows)
	return pty
}
