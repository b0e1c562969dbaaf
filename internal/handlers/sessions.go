package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xivicWon/ssh-monitor/internal/sshterminal"
)

// ListSessions handles GET /api/sessions.
func ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":    TermMgr.Sessions(),
		"maxSessions": TermMgr.MaxSessions(),
	})
}

// CloseSession handles DELETE /api/sessions/{sessionId}.
func CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if !TermMgr.Cleanup(id, sshterminal.ReasonUserDisconnect) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	Broker.Publish(sshterminal.Topic(id), sshterminal.DisconnectedMessage(id))
	w.WriteHeader(http.StatusNoContent)
}
