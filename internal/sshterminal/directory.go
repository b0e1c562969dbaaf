package sshterminal

import (
	"context"
	"log"

	"github.com/xivicWon/ssh-monitor/internal/logutil"
	"github.com/xivicWon/ssh-monitor/internal/sshfiles"
)

// ListDirectory lists path on the session's host over a separate exec
// channel. An empty path lists the login directory. On success the
// resolved path becomes the session's current path.
func (m *Manager) ListDirectory(ctx context.Context, id, path string) *DirectoryListResponse {
	s := m.get(id)
	if s == nil {
		return directoryError("Session not found")
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.CommandTimeout)
	defer cancel()

	resolved, entries, err := sshfiles.ListDirectory(ctx, s.conn, path)
	if err != nil {
		log.Printf("[session-mgr] list directory for session %s failed: %v", logutil.SanitizeForLog(id), err)
		return directoryError(err.Error())
	}

	s.touch()
	s.setCurrentPath(resolved)
	return directorySuccess(resolved, entries)
}

// CurrentDirectory returns the session's current path: the last path
// listed, or the login directory reported by pwd if nothing was listed yet.
// It returns false if the session is unknown or pwd fails.
func (m *Manager) CurrentDirectory(ctx context.Context, id string) (string, bool) {
	s := m.get(id)
	if s == nil {
		return "", false
	}
	if p := s.CurrentPath(); p != "" {
		return p, true
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.CommandTimeout)
	defer cancel()

	p, err := sshfiles.Pwd(ctx, s.conn)
	if err != nil {
		log.Printf("[session-mgr] pwd for session %s failed: %v", logutil.SanitizeForLog(id), err)
		return "", false
	}
	s.setCurrentPath(p)
	return p, true
}
