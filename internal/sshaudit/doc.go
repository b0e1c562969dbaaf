// Package sshaudit records terminal session lifecycle events and SSH
// connection attempts to the ssh_audit_logs table and the standard logger.
//
// [Auditor] wraps a GORM connection. [InitGlobal] installs the process-wide
// instance during startup and the helpers in helpers.go
// ([LogTerminalSessionStart], [LogTerminalSessionEnd], [LogConnectionFailed],
// [LogConnectionValidated]) write through it. The helpers are no-ops until
// InitGlobal is called, so packages that emit audit events need no setup in
// their own tests.
//
// Entries carry the session id, target host, port, username and client IP.
// Passwords and key material are never part of an entry.
//
// [Auditor.PurgeOlderThan] removes entries beyond the retention period
// ([DefaultRetentionDays] unless configured) and is scheduled daily by the
// server.
//
// Audit log messages use the [ssh-audit] prefix.
package sshaudit
