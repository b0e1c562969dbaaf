// Package sshterminal manages interactive SSH terminal sessions driven by a
// browser over a publish/subscribe transport.
//
// A [Manager] holds the registry of live [Session] values keyed by a
// client-chosen session id. Each session owns an authenticated SSH
// connection, a PTY shell channel and two in-memory pipes: browser input is
// written to one, shell output (stdout and stderr merged) is read from the
// other by the session's output pump and published to [Topic].
//
// # Lifecycle
//
//  1. [Manager.Connect] validates the request, reserves a slot under the
//     session limit, dials, opens the shell and registers the session.
//  2. [Manager.Input], [Manager.Resize], [Manager.Ping],
//     [Manager.ListDirectory] and [Manager.CurrentDirectory] act on a live
//     session and refresh its last activity time.
//  3. The session ends through exactly one of: [Manager.Disconnect], the
//     output stream ending, [Manager.ExpireIdle], [Manager.CheckHealth],
//     [Manager.Cleanup] from a transport disconnect, or [Manager.Shutdown].
//     Removal from the registry decides the winner, so resources are
//     released and a disconnected status is announced at most once.
//
// # Limits
//
//   - Input payloads are capped at [MaxInputMessageSize] (64 KB).
//   - Terminal dimensions are clamped to [MaxTermCols] x [MaxTermRows].
//   - The number of live plus connecting sessions is capped by
//     Config.MaxSessions.
//
// [Manager.Start] schedules the expiry and health sweeps with robfig/cron.
//
// Log messages use the [session-mgr], [pump] and [liveness] prefixes.
package sshterminal
