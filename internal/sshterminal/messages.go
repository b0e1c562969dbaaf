package sshterminal

import "github.com/xivicWon/ssh-monitor/internal/sshfiles"

// MessageType is the "type" field of a TerminalMessage.
type MessageType string

const (
	TypeConnected    MessageType = "connected"
	TypeOutput       MessageType = "output"
	TypeError        MessageType = "error"
	TypeDisconnected MessageType = "disconnected"
	TypeResized      MessageType = "resized"
	TypeStatus       MessageType = "status"
	TypePing         MessageType = "ping"
	TypePong         MessageType = "pong"
	TypeHealthCheck  MessageType = "health_check"
)

// Status values carried by status, pong and health_check messages.
const (
	StatusDisconnected = "disconnected"
	StatusHealthy      = "healthy"
	StatusUnhealthy    = "unhealthy"
)

// TerminalMessage is the event envelope sent to the browser on a session's
// topic and returned as the reply to terminal commands.
type TerminalMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Data      string      `json:"data,omitempty"`
	Status    string      `json:"status,omitempty"`
	Message   string      `json:"message,omitempty"`
	ErrorCode string      `json:"errorCode,omitempty"`
	Cols      int         `json:"cols,omitempty"`
	Rows      int         `json:"rows,omitempty"`
}

func ConnectedMessage(id string) *TerminalMessage {
	return &TerminalMessage{Type: TypeConnected, SessionID: id, Message: "SSH connection established"}
}

func OutputMessage(id, data string) *TerminalMessage {
	return &TerminalMessage{Type: TypeOutput, SessionID: id, Data: data}
}

func ErrorMessage(id, code, message string) *TerminalMessage {
	return &TerminalMessage{Type: TypeError, SessionID: id, ErrorCode: code, Message: message}
}

func DisconnectedMessage(id string) *TerminalMessage {
	return &TerminalMessage{Type: TypeDisconnected, SessionID: id, Message: "SSH session closed"}
}

func ResizedMessage(id string, cols, rows int) *TerminalMessage {
	return &TerminalMessage{Type: TypeResized, SessionID: id, Cols: cols, Rows: rows}
}

func StatusMessage(id, status, message string) *TerminalMessage {
	return &TerminalMessage{Type: TypeStatus, SessionID: id, Status: status, Message: message}
}

// PongMessage answers a ping. Data is "true" or "false" so clients that only
// look at data still get the verdict.
func PongMessage(id string, healthy bool) *TerminalMessage {
	m := &TerminalMessage{Type: TypePong, SessionID: id, Data: "false", Status: StatusUnhealthy}
	if healthy {
		m.Data, m.Status = "true", StatusHealthy
	}
	return m
}

func HealthCheckMessage(id string, healthy bool) *TerminalMessage {
	if healthy {
		return &TerminalMessage{Type: TypeHealthCheck, SessionID: id, Status: StatusHealthy}
	}
	return &TerminalMessage{Type: TypeHealthCheck, SessionID: id, Status: StatusUnhealthy, Message: "Session health check failed"}
}

// DirectoryListResponse is published on a session's directory topic.
type DirectoryListResponse struct {
	Success      bool             `json:"success"`
	CurrentPath  string           `json:"currentPath,omitempty"`
	Entries      []sshfiles.Entry `json:"entries"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
}

func directorySuccess(path string, entries []sshfiles.Entry) *DirectoryListResponse {
	if entries == nil {
		entries = []sshfiles.Entry{}
	}
	return &DirectoryListResponse{Success: true, CurrentPath: path, Entries: entries}
}

func directoryError(msg string) *DirectoryListResponse {
	return &DirectoryListResponse{Entries: []sshfiles.Entry{}, ErrorMessage: msg}
}

// Topic is the destination terminal events for session id are published on.
func Topic(id string) string { return "/topic/terminal/" + id }

// DirectoryTopic carries DirectoryListResponse values for session id.
func DirectoryTopic(id string) string { return Topic(id) + "/directory" }

// PwdTopic carries the current path string for session id.
func PwdTopic(id string) string { return Topic(id) + "/pwd" }
