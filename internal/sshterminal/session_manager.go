package sshterminal

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/logutil"
	"github.com/xivicWon/ssh-monitor/internal/sshaudit"
	"github.com/xivicWon/ssh-monitor/internal/sshproxy"
)

// Cleanup reasons recorded in logs and the audit trail.
const (
	ReasonUserDisconnect = "User requested disconnect"
	ReasonConnClosed     = "Connection closed"
	ReasonExpired        = "Session expired due to inactivity"
	ReasonWSDisconnected = "WebSocket disconnected"
	ReasonShutdown       = "Server shutting down"
)

// Publisher delivers an event to every subscriber of destination.
type Publisher interface {
	Publish(destination string, payload any)
}

// Config holds the limits and intervals of a Manager.
type Config struct {
	MaxSessions    int
	ConnectTimeout time.Duration
	// SessionTimeout is the idle time after which a session expires. Zero
	// or negative disables expiry.
	SessionTimeout time.Duration
	BufferSize     int
	ExpiryInterval time.Duration
	HealthInterval time.Duration
	// CommandTimeout bounds directory listing and pwd commands.
	CommandTimeout time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxSessions:    10,
		ConnectTimeout: 10 * time.Second,
		SessionTimeout: 30 * time.Minute,
		BufferSize:     8192,
		ExpiryInterval: time.Minute,
		HealthInterval: 15 * time.Second,
		CommandTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSessions <= 0 {
		c.MaxSessions = d.MaxSessions
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.ExpiryInterval <= 0 {
		c.ExpiryInterval = d.ExpiryInterval
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = d.HealthInterval
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = d.CommandTimeout
	}
	return c
}

// Manager is the registry of live terminal sessions. It is safe for
// concurrent use by many browser connections.
//
// A session id is present in the registry if and only if its connection,
// channel and pipes are all live. Every path that removes a session
// (explicit disconnect, stream end, expiry, failed health check, transport
// loss, shutdown) goes through the same removal, so each session is
// released and announced at most once.
type Manager struct {
	cfg    Config
	dialer Dialer
	pub    Publisher
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	// pending holds ids whose connect is in flight. They count against
	// MaxSessions and block duplicate connects.
	pending map[string]struct{}

	cron *cron.Cron
}

// NewManager creates a Manager. Call Start to run the expiry and health
// sweeps.
func NewManager(cfg Config, dialer Dialer, pub Publisher) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		dialer:   dialer,
		pub:      pub,
		now:      time.Now,
		sessions: make(map[string]*Session),
		pending:  make(map[string]struct{}),
	}
}

// SetNowFunc replaces the clock. Tests only; call before any session is
// created.
func (m *Manager) SetNowFunc(fn func() time.Time) {
	m.now = fn
}

// Connect opens a terminal session for req and returns the reply for the
// caller: a connected message on success, otherwise an error message
// carrying the failure's code. The registry gains an entry only on full
// success.
func (m *Manager) Connect(ctx context.Context, req *ConnectRequest) *TerminalMessage {
	id := req.SessionID
	if err := req.Validate(); err != nil {
		return m.connectFailed(req, err)
	}
	if err := m.reserve(id); err != nil {
		log.Printf("[session-mgr] connect %s rejected: %s", logutil.SanitizeForLog(id), apperr.MessageOf(err))
		return m.connectFailed(req, err)
	}

	s, err := m.open(ctx, req)
	if err != nil {
		m.unreserve(id)
		return m.connectFailed(req, err)
	}

	m.mu.Lock()
	delete(m.pending, id)
	m.sessions[id] = s
	m.mu.Unlock()

	go m.pump(s)

	log.Printf("[session-mgr] session %s connected: %s@%s:%d",
		logutil.SanitizeForLog(id), logutil.SanitizeForLog(s.Username), logutil.SanitizeForLog(s.Host), s.Port)
	sshaudit.LogTerminalSessionStart(s.auditTarget())
	return ConnectedMessage(id)
}

// open dials the target and starts the shell. On failure everything it
// acquired is released.
func (m *Manager) open(ctx context.Context, req *ConnectRequest) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	target := req.Target()
	conn, err := m.dialer.Dial(ctx, target)
	if err != nil {
		return nil, err
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	shell, err := conn.OpenShell(ctx, req.PTY(), inR, outW)
	if err != nil {
		inW.Close()
		outR.Close()
		outW.Close()
		conn.Close()
		return nil, err
	}

	now := m.now()
	s := &Session{
		ID:        req.SessionID,
		Host:      target.Host,
		Port:      target.Port,
		Username:  target.Username,
		SourceIP:  req.SourceIP,
		CreatedAt: now,
		conn:      conn,
		shell:     shell,
		input:     inW,
		output:    outR,
		now:       m.now,
	}
	s.lastActivity.Store(now.UnixNano())
	s.running.Store(true)
	return s, nil
}

func (m *Manager) connectFailed(req *ConnectRequest, err error) *TerminalMessage {
	code := sshproxy.Classify(err)
	msg := apperr.MessageOf(err)
	if code != apperr.SessionLimit && code != apperr.InvalidRequest {
		log.Printf("[session-mgr] connect %s failed: %s: %v", logutil.SanitizeForLog(req.SessionID), code, err)
		sshaudit.LogConnectionFailed(sshaudit.Target{
			SessionID: req.SessionID,
			Host:      req.Host,
			Port:      req.Port,
			Username:  req.Username,
			SourceIP:  req.SourceIP,
		}, string(code), msg)
	}
	return ErrorMessage(req.SessionID, string(code), msg)
}

// reserve claims id for an in-flight connect, checking capacity first and
// then uniqueness.
func (m *Manager) reserve(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions)+len(m.pending) >= m.cfg.MaxSessions {
		return apperr.New(apperr.SessionLimit, fmt.Sprintf("Maximum session limit (%d) reached", m.cfg.MaxSessions))
	}
	_, live := m.sessions[id]
	_, inFlight := m.pending[id]
	if live || inFlight {
		return apperr.New(apperr.InvalidRequest, "Session already exists")
	}
	m.pending[id] = struct{}{}
	return nil
}

func (m *Manager) unreserve(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// Input forwards data to the session's shell. It returns nil on success, or
// an error message to publish on the session topic.
func (m *Manager) Input(id, data string) *TerminalMessage {
	s := m.get(id)
	if s == nil {
		log.Printf("[session-mgr] input for unknown session %s", logutil.SanitizeForLog(id))
		return ErrorMessage(id, string(apperr.SessionNotFound), "Session not found")
	}
	if len(data) > MaxInputMessageSize {
		return ErrorMessage(id, string(apperr.InvalidRequest),
			fmt.Sprintf("Input exceeds maximum size of %d bytes", MaxInputMessageSize))
	}

	s.touch()
	if data == "" {
		return nil
	}
	if err := s.write([]byte(data)); err != nil {
		log.Printf("[session-mgr] input to session %s failed: %v", logutil.SanitizeForLog(id), err)
		return ErrorMessage(id, string(apperr.NetworkError), "Failed to send input")
	}
	return nil
}

// Resize changes the PTY geometry. Sizes above MaxTermCols x MaxTermRows
// are clamped; sizes below 1 are rejected.
func (m *Manager) Resize(id string, cols, rows int) *TerminalMessage {
	if cols < 1 || rows < 1 {
		return ErrorMessage(id, string(apperr.InvalidRequest),
			fmt.Sprintf("Invalid terminal size %dx%d", cols, rows))
	}
	s := m.get(id)
	if s == nil {
		return ErrorMessage(id, string(apperr.SessionNotFound), "Session not found")
	}

	cols, rows = clampSize(cols, rows)
	if err := s.shell.WindowChange(cols, rows); err != nil {
		log.Printf("[session-mgr] resize session %s failed: %v", logutil.SanitizeForLog(id), err)
		return ErrorMessage(id, string(apperr.CommandFailed), "Failed to resize terminal")
	}
	s.touch()
	return ResizedMessage(id, cols, rows)
}

// Ping reports whether a session is healthy. A healthy ping counts as
// activity; an unknown or unhealthy session is left untouched.
func (m *Manager) Ping(id string) *TerminalMessage {
	s := m.get(id)
	if s == nil {
		return PongMessage(id, false)
	}
	if _, ok := s.health(); !ok {
		return PongMessage(id, false)
	}
	s.touch()
	return PongMessage(id, true)
}

// Disconnect cleans up the session at the user's request. It always
// answers disconnected, whether or not the session existed.
func (m *Manager) Disconnect(id string) *TerminalMessage {
	m.Cleanup(id, ReasonUserDisconnect)
	return DisconnectedMessage(id)
}

// Cleanup removes and releases the session with id. It is idempotent and
// reports whether this call did the removal.
func (m *Manager) Cleanup(id, reason string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		s.running.Store(false)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.release(s, reason)
	return true
}

// teardown removes s only if it is still the registered record for its id,
// so a stale pump cannot evict a newer session reusing the id.
func (m *Manager) teardown(s *Session, reason string) bool {
	m.mu.Lock()
	if cur, ok := m.sessions[s.ID]; !ok || cur != s {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, s.ID)
	s.running.Store(false)
	m.mu.Unlock()

	m.release(s, reason)
	return true
}

// release closes the session's pipes, channel and connection. Close
// failures are logged and do not stop the remaining releases.
func (m *Manager) release(s *Session, reason string) {
	closers := []struct {
		name string
		c    io.Closer
	}{
		{"input pipe", s.input},
		{"output pipe", s.output},
		{"shell", s.shell},
		{"connection", s.conn},
	}
	for _, c := range closers {
		if err := c.c.Close(); err != nil {
			log.Printf("[session-mgr] session %s: close %s: %v", logutil.SanitizeForLog(s.ID), c.name, err)
		}
	}

	now := m.now()
	lived := now.Sub(s.CreatedAt)
	idle := now.Sub(s.LastActivity())
	log.Printf("[session-mgr] session %s closed (%s): lived %s, idle %s",
		logutil.SanitizeForLog(s.ID), reason, lived.Round(time.Millisecond), idle.Round(time.Millisecond))
	sshaudit.LogTerminalSessionEnd(s.auditTarget(), reason, lived, idle)
}

func (m *Manager) publish(destination string, payload any) {
	if m.pub != nil {
		m.pub.Publish(destination, payload)
	}
}

func (m *Manager) get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Has reports whether id is a live session.
func (m *Manager) Has(id string) bool {
	return m.get(id) != nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// MaxSessions returns the configured session limit.
func (m *Manager) MaxSessions() int {
	return m.cfg.MaxSessions
}

// Sessions returns a snapshot of every live session.
func (m *Manager) Sessions() []SessionInfo {
	sessions := m.snapshot()
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.info())
	}
	return out
}

// Shutdown stops the sweeps and releases every session.
func (m *Manager) Shutdown() {
	m.Stop()
	for _, s := range m.snapshot() {
		m.teardown(s, ReasonShutdown)
	}
	log.Printf("[session-mgr] shutdown complete")
}
