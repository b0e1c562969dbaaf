package sshaudit

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Target identifies the remote end of an audited event.
type Target struct {
	SessionID string
	Host      string
	Port      int
	Username  string
	SourceIP  string
}

func (t Target) entry(eventType, details string) AuditEntry {
	return AuditEntry{
		SessionID: t.SessionID,
		Host:      t.Host,
		Port:      t.Port,
		Username:  t.Username,
		SourceIP:  t.SourceIP,
		EventType: eventType,
		Details:   details,
	}
}

// LogTerminalSessionStart logs the start of a terminal session.
func LogTerminalSessionStart(t Target) {
	if a := GetAuditor(); a != nil {
		a.Log(t.entry(EventTerminalSessionStart, ""))
	}
}

// LogTerminalSessionEnd logs the end of a terminal session with how long it
// lived and how long it had been idle.
func LogTerminalSessionEnd(t Target, reason string, lived, idle time.Duration) {
	if a := GetAuditor(); a != nil {
		e := t.entry(EventTerminalSessionEnd, "reason="+reason)
		e.DurationMs = lived.Milliseconds()
		e.IdleMs = idle.Milliseconds()
		a.Log(e)
	}
}

// LogConnectionFailed logs a failed SSH connection attempt.
func LogConnectionFailed(t Target, code, reason string) {
	if a := GetAuditor(); a != nil {
		a.Log(t.entry(EventConnectionFailed, fmt.Sprintf("code=%s reason=%s", code, reason)))
	}
}

// LogConnectionValidated logs a successful one-shot credential check.
func LogConnectionValidated(t Target) {
	if a := GetAuditor(); a != nil {
		a.Log(t.entry(EventConnectionValidated, ""))
	}
}

// ExtractSourceIP extracts the client IP from an HTTP request,
// preferring X-Forwarded-For and X-Real-IP headers.
func ExtractSourceIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	// Fall back to remote address (strip port)
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
