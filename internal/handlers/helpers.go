package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// sessionIDFrom accepts either a bare JSON string or an object carrying a
// sessionId field.
func sessionIDFrom(body json.RawMessage) string {
	var id string
	if err := json.Unmarshal(body, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(body, &req); err == nil {
		return strings.TrimSpace(req.SessionID)
	}
	return ""
}
