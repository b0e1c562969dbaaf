package sshterminal

import (
	"errors"
	"io"
	"log"
	"unicode/utf8"

	"github.com/xivicWon/ssh-monitor/internal/apperr"
	"github.com/xivicWon/ssh-monitor/internal/logutil"
)

// pump relays shell output to the session topic until the output pipe ends.
// A multi-byte character split across reads is held back and sent with the
// next chunk. When the stream ends on its own the session is torn down and
// a single disconnected status is published.
func (m *Manager) pump(s *Session) {
	topic := Topic(s.ID)
	buf := make([]byte, m.cfg.BufferSize)
	var carry []byte

	for s.running.Load() {
		n, err := s.output.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			var chunk []byte
			chunk, carry = splitUTF8(data)
			carry = append([]byte(nil), carry...)
			if len(chunk) > 0 {
				s.touch()
				m.publish(topic, OutputMessage(s.ID, string(chunk)))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && s.running.Load() {
				log.Printf("[pump] session %s read error: %v", logutil.SanitizeForLog(s.ID), err)
				m.publish(topic, ErrorMessage(s.ID, string(apperr.NetworkError), "Connection lost"))
			}
			break
		}
	}

	if len(carry) > 0 && s.running.Load() {
		m.publish(topic, OutputMessage(s.ID, string(carry)))
	}

	if s.running.Load() && m.teardown(s, ReasonConnClosed) {
		m.publish(topic, StatusMessage(s.ID, StatusDisconnected, ReasonConnClosed))
	}
}

// splitUTF8 splits p before a trailing incomplete UTF-8 sequence. Invalid
// bytes are not held back.
func splitUTF8(p []byte) (complete, rest []byte) {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return p, nil
		}
		return p[:i], p[i:]
	}
	return p, nil
}
