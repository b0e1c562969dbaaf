package sshproxy

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/sshkeys"
)

// Classify maps a connection failure to an error kind. Typed causes are
// checked first; otherwise the message is inspected, with NETWORK_ERROR as
// the fallback.
func Classify(err error) apperr.Code {
	if err == nil {
		return ""
	}
	if code, ok := apperr.CodeOf(err); ok {
		return code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Timeout
	}
	if errors.Is(err, sshkeys.ErrInvalidKey) || errors.Is(err, sshkeys.ErrPassphraseRequired) {
		return apperr.AuthFailed
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"),
		strings.Contains(msg, "auth"),
		strings.Contains(msg, "password"),
		strings.Contains(msg, "key"):
		return apperr.AuthFailed
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return apperr.Timeout
	}
	return apperr.NetworkError
}
