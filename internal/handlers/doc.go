// Package handlers holds the HTTP endpoints and the terminal command
// destinations served over the broker WebSocket.
//
// Dependencies (Broker, TermMgr, Tracker, InfoSvc, AllowedOrigins) are
// package variables assigned by main before the router starts.
package handlers
