package sshterminal

// Limits applied to browser-supplied terminal input.
const (
	// MaxInputMessageSize is the maximum size in bytes of a single input
	// payload. Larger payloads are rejected.
	MaxInputMessageSize = 64 * 1024

	// MaxTermCols is the maximum allowed terminal width.
	MaxTermCols = 500
	// MaxTermRows is the maximum allowed terminal height.
	MaxTermRows = 200
)

// Defaults for a PTY when the connect request leaves them out.
const (
	DefaultCols = 80
	DefaultRows = 24
	DefaultTerm = "xterm-256color"
)

// clampSize limits cols and rows to MaxTermCols and MaxTermRows. Callers
// reject non-positive values before clamping.
func clampSize(cols, rows int) (int, int) {
	return min(cols, MaxTermCols), min(rows, MaxTermRows)
}
