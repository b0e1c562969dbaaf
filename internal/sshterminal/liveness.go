package sshterminal

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/xivicWon/ssh-monitor/internal/logutil"
)

// Start schedules the idle-expiry and health sweeps. A sweep that is still
// running when its next tick arrives is skipped.
func (m *Manager) Start() {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.Default()))))
	c.Schedule(cron.Every(m.cfg.ExpiryInterval), cron.FuncJob(func() { m.ExpireIdle() }))
	c.Schedule(cron.Every(m.cfg.HealthInterval), cron.FuncJob(func() { m.CheckHealth() }))
	c.Start()
	m.cron = c
	log.Printf("[liveness] sweeps started: expiry every %s (timeout %s), health every %s",
		m.cfg.ExpiryInterval, m.cfg.SessionTimeout, m.cfg.HealthInterval)
}

// Stop cancels the sweeps and waits for a running one to finish.
func (m *Manager) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.cron = nil
}

// ExpireIdle removes every session idle for longer than SessionTimeout and
// publishes a disconnected status for each. Returns how many expired.
func (m *Manager) ExpireIdle() int {
	if m.cfg.SessionTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.SessionTimeout)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			delete(m.sessions, id)
			s.running.Store(false)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		log.Printf("[liveness] session %s expired, idle since %s",
			logutil.SanitizeForLog(s.ID), s.LastActivity().Format("15:04:05"))
		m.release(s, ReasonExpired)
		m.publish(Topic(s.ID), StatusMessage(s.ID, StatusDisconnected, ReasonExpired))
	}
	return len(expired)
}

// CheckHealth tears down sessions whose connection or channel has gone away
// and publishes a health_check and a disconnected status for each. Returns
// how many were removed.
func (m *Manager) CheckHealth() int {
	sessions := m.snapshot()
	if len(sessions) == 0 {
		return 0
	}

	removed := 0
	for _, s := range sessions {
		reason, ok := s.health()
		if ok {
			continue
		}
		if !m.teardown(s, "Health check failed: "+reason) {
			continue
		}
		removed++
		log.Printf("[liveness] session %s failed health check: %s", logutil.SanitizeForLog(s.ID), reason)
		m.publish(Topic(s.ID), HealthCheckMessage(s.ID, false))
		m.publish(Topic(s.ID), StatusMessage(s.ID, StatusDisconnected,
			"Connection lost (health check failed: "+reason+")"))
	}
	return removed
}
