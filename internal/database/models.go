package database

import "time"

// SSHAuditLog records a terminal session lifecycle event or a connection
// attempt. Credentials are never stored.
type SSHAuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"index;size:128" json:"session_id"`
	Host       string    `gorm:"index;size:255" json:"host"`
	Port       int       `json:"port"`
	Username   string    `gorm:"size:255" json:"username"`
	SourceIP   string    `gorm:"size:64" json:"source_ip"`
	EventType  string    `gorm:"index;size:64;not null" json:"event_type"`
	Details    string    `gorm:"type:text" json:"details"`
	DurationMs int64     `json:"duration_ms"`
	IdleMs     int64     `json:"idle_ms"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
