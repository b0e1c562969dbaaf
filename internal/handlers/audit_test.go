package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xivicWon/ssh-monitor/internal/database"
	"github.com/xivicWon/ssh-monitor/internal/sshaudit"
)

// setupAuditTestDB points database.DB and the global auditor at an
// in-memory database.
func setupAuditTestDB(t *testing.T) *sshaudit.Auditor {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test DB: %v", err)
	}
	prev := database.DB
	database.DB = db
	a := sshaudit.NewAuditor(db, 90)
	sshaudit.SetGlobalForTest(a)
	t.Cleanup(func() {
		sshaudit.ResetGlobalForTest()
		database.DB = prev
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return a
}

func getAudit(t *testing.T, query string) (*httptest.ResponseRecorder, sshaudit.QueryResult) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/audit"+query, nil)
	w := httptest.NewRecorder()
	GetAuditLogs(w, req)

	var result sshaudit.QueryResult
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return w, result
}

func TestGetAuditLogs_Filters(t *testing.T) {
	a := setupAuditTestDB(t)
	a.Log(sshaudit.AuditEntry{SessionID: "s1", Host: "h1", EventType: sshaudit.EventTerminalSessionStart})
	a.Log(sshaudit.AuditEntry{SessionID: "s1", Host: "h1", EventType: sshaudit.EventTerminalSessionEnd})
	a.Log(sshaudit.AuditEntry{SessionID: "s2", Host: "h2", EventType: sshaudit.EventTerminalSessionStart})

	tests := []struct {
		query string
		total int64
	}{
		{"", 3},
		{"?session_id=s1", 2},
		{"?event_type=terminal_session_start", 2},
		{"?session_id=s2&event_type=terminal_session_end", 0},
		{"?host=h2", 1},
	}
	for _, tt := range tests {
		w, result := getAudit(t, tt.query)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.query, w.Code)
		}
		if result.Total != tt.total {
			t.Errorf("%s: total = %d, want %d", tt.query, result.Total, tt.total)
		}
	}

	_, result := getAudit(t, "?limit=1&offset=1")
	if len(result.Entries) != 1 || result.Total != 3 || result.Limit != 1 || result.Offset != 1 {
		t.Errorf("paged result = %+v", result)
	}
}

func TestGetAuditLogs_BadParams(t *testing.T) {
	setupAuditTestDB(t)
	for _, q := range []string{"?limit=0", "?limit=x", "?offset=-1", "?since=yesterday", "?until=2024"} {
		if w, _ := getAudit(t, q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestGetAuditLogs_NotInitialized(t *testing.T) {
	sshaudit.ResetGlobalForTest()
	if w, _ := getAudit(t, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestPurgeAuditLogs(t *testing.T) {
	a := setupAuditTestDB(t)
	a.SetNowFunc(func() time.Time { return time.Now().AddDate(0, 0, -10) })
	a.Log(sshaudit.AuditEntry{SessionID: "old", EventType: sshaudit.EventTerminalSessionStart})
	a.SetNowFunc(time.Now)
	a.Log(sshaudit.AuditEntry{SessionID: "new", EventType: sshaudit.EventTerminalSessionStart})

	req := httptest.NewRequest(http.MethodPost, "/api/audit/purge?days=5", nil)
	w := httptest.NewRecorder()
	PurgeAuditLogs(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]int64
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["deleted"] != 1 {
		t.Errorf("deleted = %d, want 1", resp["deleted"])
	}

	req = httptest.NewRequest(http.MethodPost, "/api/audit/purge?days=0", nil)
	w = httptest.NewRecorder()
	PurgeAuditLogs(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("days=0: status = %d, want 400", w.Code)
	}
}
