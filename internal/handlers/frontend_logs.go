package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/xivicWon/ssh-monitor/internal/logutil"
)

// maxFrontendLogData caps the data field written to the process log.
const maxFrontendLogData = 4096

// FrontendLog is one log record shipped by the browser.
type FrontendLog struct {
	Timestamp string          `json:"timestamp"`
	Level     string          `json:"level"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	SessionID string          `json:"sessionId"`
}

func (l *FrontendLog) validate() error {
	for _, f := range []struct{ name, value string }{
		{"timestamp", l.Timestamp},
		{"level", l.Level},
		{"category", l.Category},
		{"message", l.Message},
		{"sessionId", l.SessionID},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	return nil
}

// data returns the data field as text. A JSON string is unquoted; any other
// JSON value is kept verbatim.
func (l *FrontendLog) data() string {
	if len(l.Data) == 0 || string(l.Data) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(l.Data, &s); err == nil {
		return s
	}
	return string(l.Data)
}

func (l *FrontendLog) line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[frontend] %s [%s] [%s] %s",
		strings.ToUpper(logutil.SanitizeForLog(l.Level)),
		logutil.SanitizeForLog(l.Category),
		logutil.SanitizeForLog(l.SessionID),
		logutil.SanitizeForLog(l.Message))
	if d := l.data(); d != "" {
		fmt.Fprintf(&b, " {%s}", logutil.Truncate(logutil.SanitizeForLog(d), maxFrontendLogData))
	}
	return b.String()
}

// ReceiveFrontendLogs handles POST /api/frontend-logs. The body is a single
// record or an array of records; nothing is logged unless all are valid.
func ReceiveFrontendLogs(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var logs []FrontendLog
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &logs); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		var one FrontendLog
		if err := json.Unmarshal(trimmed, &one); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		logs = []FrontendLog{one}
	}

	for i := range logs {
		if err := logs[i].validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("log %d: %v", i, err))
			return
		}
	}
	for i := range logs {
		log.Print(logs[i].line())
	}
	writeJSON(w, http.StatusOK, map[string]int{"received": len(logs)})
}
