package sshinfo

import (
	"strings"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/sshproxy"
)

// Request carries the credentials for a one-shot connection check.
type Request struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	AuthType   string `json:"authType"`
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

// Validate reports the first missing or malformed field as INVALID_REQUEST.
func (r *Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Host) == "":
		return apperr.New(apperr.InvalidRequest, "Host is required")
	case strings.TrimSpace(r.Username) == "":
		return apperr.New(apperr.InvalidRequest, "Username is required")
	case strings.TrimSpace(r.AuthType) == "":
		return apperr.New(apperr.InvalidRequest, "Authentication type is required")
	case r.Port < 0 || r.Port > 65535:
		return apperr.New(apperr.InvalidRequest, "Port must be between 1 and 65535")
	}

	auth, ok := sshproxy.ParseAuthType(r.AuthType)
	if !ok {
		return apperr.New(apperr.InvalidRequest, "Unsupported authentication type")
	}
	if auth == sshproxy.AuthPassword && r.Password == "" {
		return apperr.New(apperr.InvalidRequest, "Password is required for password authentication")
	}
	if auth == sshproxy.AuthPrivateKey && strings.TrimSpace(r.PrivateKey) == "" {
		return apperr.New(apperr.InvalidRequest, "Private key is required for key authentication")
	}
	return nil
}

func (r *Request) target() sshproxy.Target {
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
		Password:   r.Password,
		PrivateKey: r.PrivateKey,
		Passphrase: r.Passphrase,
	}
}
