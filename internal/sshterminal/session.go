package sshterminal

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xivicWon/ssh-monitor/internal/sshaudit"
)

// Session is one live terminal: an SSH connection, its shell channel and the
// two pipes joining the channel to the browser. The session owns the writer
// end of the input pipe and the reader end of the output pipe; the channel
// owns the opposite ends.
type Session struct {
	ID        string
	Host      string
	Port      int
	Username  string
	SourceIP  string
	CreatedAt time.Time

	conn   Conn
	shell  Shell
	input  *io.PipeWriter
	output *io.PipeReader

	now          func() time.Time
	lastActivity atomic.Int64 // unix nanoseconds
	running      atomic.Bool
	currentPath  atomic.Pointer[string]

	// inputMu keeps concurrent writes from interleaving on the input pipe.
	inputMu sync.Mutex
}

// SessionInfo is a point-in-time view of a Session for listing.
type SessionInfo struct {
	ID           string    `json:"sessionId"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	CurrentPath  string    `json:"currentPath,omitempty"`
	Healthy      bool      `json:"healthy"`
}

func (s *Session) touch() {
	s.lastActivity.Store(s.now().UnixNano())
}

// LastActivity returns the time of the last input, output or successful
// command on the session.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Running reports whether the session is still registered.
func (s *Session) Running() bool {
	return s.running.Load()
}

// CurrentPath returns the last directory listed, or "" if none.
func (s *Session) CurrentPath() string {
	if p := s.currentPath.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *Session) setCurrentPath(p string) {
	s.currentPath.Store(&p)
}

// write forwards input to the shell channel.
func (s *Session) write(p []byte) error {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	_, err := s.input.Write(p)
	return err
}

// health returns the first failing liveness check, in order: connection
// open, channel open, connection authenticated.
func (s *Session) health() (reason string, ok bool) {
	switch {
	case !s.conn.IsOpen():
		return "connection closed", false
	case !s.shell.IsOpen():
		return "channel closed", false
	case !s.conn.IsAuthenticated():
		return "not authenticated", false
	}
	return "", true
}

func (s *Session) info() SessionInfo {
	_, healthy := s.health()
	return SessionInfo{
		ID:           s.ID,
		Host:         s.Host,
		Port:         s.Port,
		Username:     s.Username,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity(),
		CurrentPath:  s.CurrentPath(),
		Healthy:      healthy,
	}
}

func (s *Session) auditTarget() sshaudit.Target {
	return sshaudit.Target{
		SessionID: s.ID,
		Host:      s.Host,
		Port:      s.Port,
		Username:  s.Username,
		SourceIP:  s.SourceIP,
	}
}
