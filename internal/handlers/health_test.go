package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xivicWon/ssh-monitor/internal/broker"
	"github.com/xivicWon/ssh-monitor/internal/config"
	"github.com/xivicWon/ssh-monitor/internal/sshproxy"
	"github.com/xivicWon/ssh-monitor/internal/sshterminal"
)

func TestHealthCheck(t *testing.T) {
	setupAuditTestDB(t)
	Broker = broker.New(broker.Config{})
	TermMgr = sshterminal.NewManager(sshterminal.Config{}, sshterminal.SSHDialer(sshproxy.NewDialer(time.Second, nil)), Broker)

	w := httptest.NewRecorder()
	HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" || resp["sessions"] != float64(0) || resp["connections"] != float64(0) || resp["database"] != "connected" {
		t.Errorf("resp = %v", resp)
	}
}

func TestSessions_ListAndClose(t *testing.T) {
	env := setupTerminal(t)
	c := env.dial(t)
	topic := sshterminal.Topic("s1")
	c.subscribe(topic)
	c.command(DestConnect, env.connectRequest("s1"))
	c.waitFor(topic, sshterminal.TypeConnected)

	r := chi.NewRouter()
	r.Get("/api/sessions", ListSessions)
	r.Delete("/api/sessions/{sessionId}", CloseSession)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	var list struct {
		Sessions []struct {
			ID       string `json:"sessionId"`
			Username string `json:"username"`
		} `json:"sessions"`
		MaxSessions int `json:"maxSessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	if len(list.Sessions) != 1 || list.Sessions[0].ID != "s1" || list.Sessions[0].Username != "alice" || list.MaxSessions != 4 {
		t.Errorf("list = %+v", list)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", w.Code)
	}
	c.waitFor(topic, sshterminal.TypeDisconnected)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("second close status = %d, want 404", w.Code)
	}
}

func TestGetServerLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	lines := []string{"one", "two", "three", "four"}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	prev := config.Cfg.LogPath
	config.Cfg.LogPath = path
	t.Cleanup(func() { config.Cfg.LogPath = prev })

	w := httptest.NewRecorder()
	GetServerLogs(w, httptest.NewRequest(http.MethodGet, "/api/server-logs?lines=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["logs"] != "three\nfour" {
		t.Errorf("logs = %q", resp["logs"])
	}
}
