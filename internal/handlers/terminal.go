package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/xivicWon/ssh-monitor/internal/broker"
	"github.com/xivicWon/ssh-monitor/internal/logutil"
	"github.com/xivicWon/ssh-monitor/internal/sshterminal"
)

// Set from main.go during init.
var (
	Broker  *broker.Broker
	TermMgr *sshterminal.Manager
	Tracker *SessionTracker
)

// Terminal command destinations.
const (
	DestConnect    = "/app/terminal/connect"
	DestInput      = "/app/terminal/input"
	DestDisconnect = "/app/terminal/disconnect"
	DestResize     = "/app/terminal/resize"
	DestListDir    = "/app/terminal/listdir"
	DestPwd        = "/app/terminal/pwd"
	DestPing       = "/app/terminal/ping"
)

type inputRequest struct {
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

type resizeRequest struct {
	SessionID string `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

type listDirRequest struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

// RegisterTerminalDestinations routes the terminal commands on Broker to
// TermMgr. Commands that wait on the remote host run asynchronously; the
// rest are handled in arrival order.
func RegisterTerminalDestinations() {
	Broker.HandleAsync(DestConnect, terminalConnect)
	Broker.Handle(DestInput, terminalInput)
	Broker.Handle(DestDisconnect, terminalDisconnect)
	Broker.Handle(DestResize, terminalResize)
	Broker.HandleAsync(DestListDir, terminalListDir)
	Broker.HandleAsync(DestPwd, terminalPwd)
	Broker.Handle(DestPing, terminalPing)
	Broker.OnDisconnect(Tracker.ClientDisconnected)
}

func terminalConnect(ctx context.Context, c *broker.Client, body json.RawMessage) {
	var req sshterminal.ConnectRequest
	if err := json.Unmarshal(body, &req); err != nil || req.SessionID == "" {
		c.SendError("invalid connect request")
		return
	}
	req.SourceIP = c.RemoteAddr

	reply := TermMgr.Connect(ctx, &req)
	if reply.Type == sshterminal.TypeConnected && !Tracker.Track(c, req.SessionID) {
		log.Printf("[ws-tracker] client %s left while session %s was connecting", c.ID, logutil.SanitizeForLog(req.SessionID))
		TermMgr.Cleanup(req.SessionID, sshterminal.ReasonWSDisconnected)
		return
	}
	Broker.Publish(sshterminal.Topic(req.SessionID), reply)
}

func terminalInput(_ context.Context, c *broker.Client, body json.RawMessage) {
	var req inputRequest
	if err := json.Unmarshal(body, &req); err != nil || req.SessionID == "" {
		c.SendError("invalid input request")
		return
	}
	if reply := TermMgr.Input(req.SessionID, req.Data); reply != nil {
		Broker.Publish(sshterminal.Topic(req.SessionID), reply)
	}
}

func terminalDisconnect(_ context.Context, c *broker.Client, body json.RawMessage) {
	id := sessionIDFrom(body)
	if id == "" {
		c.SendError("invalid disconnect request")
		return
	}
	reply := TermMgr.Disconnect(id)
	Tracker.Untrack(c.ID, id)
	Broker.Publish(sshterminal.Topic(id), reply)
}

func terminalResize(_ context.Context, c *broker.Client, body json.RawMessage) {
	var req resizeRequest
	if err := json.Unmarshal(body, &req); err != nil || req.SessionID == "" {
		c.SendError("invalid resize request")
		return
	}
	Broker.Publish(sshterminal.Topic(req.SessionID), TermMgr.Resize(req.SessionID, req.Cols, req.Rows))
}

func terminalListDir(ctx context.Context, c *broker.Client, body json.RawMessage) {
	var req listDirRequest
	if err := json.Unmarshal(body, &req); err != nil || req.SessionID == "" {
		c.SendError("invalid listdir request")
		return
	}
	Broker.Publish(sshterminal.DirectoryTopic(req.SessionID), TermMgr.ListDirectory(ctx, req.SessionID, req.Path))
}

// terminalPwd publishes the session's current path, or "" when it cannot be
// determined.
func terminalPwd(ctx context.Context, c *broker.Client, body json.RawMessage) {
	id := sessionIDFrom(body)
	if id == "" {
		c.SendError("invalid pwd request")
		return
	}
	path, _ := TermMgr.CurrentDirectory(ctx, id)
	Broker.Publish(sshterminal.PwdTopic(id), path)
}

func terminalPing(_ context.Context, c *broker.Client, body json.RawMessage) {
	id := sessionIDFrom(body)
	if id == "" {
		c.SendError("invalid ping request")
		return
	}
	Broker.Publish(sshterminal.Topic(id), TermMgr.Ping(id))
}
