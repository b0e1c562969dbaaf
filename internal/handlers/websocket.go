package handlers

import (
	"log"
	"net/http"

	"github.com/coder/websocket"

	"github.com/xivicWon/ssh-monitor/internal/sshaudit"
	"github.com/xivicWon/ssh-monitor/internal/sshterminal"
)

// AllowedOrigins lists accepted Origin patterns for the terminal socket.
// Empty disables the origin check.
var AllowedOrigins []string

// wsReadLimit leaves room for JSON escaping of a maximal input frame.
const wsReadLimit = 4 * sshterminal.MaxInputMessageSize

// TerminalWS upgrades the request and serves the broker protocol on it
// until the client goes away.
func TerminalWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(AllowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = AllowedOrigins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Printf("[broker] failed to accept terminal websocket: %v", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsReadLimit)

	Broker.Serve(r.Context(), conn, sshaudit.ExtractSourceIP(r))
}
