package handlers

import (
	"net/http"

	"github.com/xivicWon/ssh-monitor/internal/database"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if err := database.Ping(); err != nil {
		dbStatus = "disconnected"
	}

	sessions, connections := 0, 0
	if TermMgr != nil {
		sessions = TermMgr.Count()
	}
	if Broker != nil {
		connections = Broker.ClientCount()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"sessions":    sessions,
		"connections": connections,
		"database":    dbStatus,
	})
}
