package sshfiles

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xivicWon/ssh-monitor/internal/logutil"
)

// Entry types reported in a listing.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
	TypeLink      = "link"
)

// Entry is one row of a remote directory listing.
type Entry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Permissions string `json:"permissions"`
	Owner       string `json:"owner"`
	Group       string `json:"group"`
	Size        int64  `json:"size"`
	Modified    string `json:"modified"`
}

// Runner executes a command on a remote host and returns its combined output.
type Runner interface {
	Run(ctx context.Context, cmd string) (string, error)
}

// ListDirectory lists path on the remote host and resolves it to an absolute
// path. An empty path lists the working directory of a fresh exec session,
// which is the login directory.
func ListDirectory(ctx context.Context, r Runner, path string) (resolved string, entries []Entry, err error) {
	start := time.Now()
	if path == "" {
		path = "."
	}

	output, err := r.Run(ctx, ListingCommand(path))
	if err != nil {
		return "", nil, commandError("list directory", output, err)
	}

	pwd, err := r.Run(ctx, ResolveCommand(path))
	if err != nil {
		return "", nil, commandError("resolve path", pwd, err)
	}
	resolved = strings.TrimSpace(pwd)

	entries = ParseListing(output)
	if resolved == "/" {
		entries = slices.DeleteFunc(entries, func(e Entry) bool { return e.Name == ".." })
	}

	log.Printf("[sshfiles] ListDirectory %s -> %s (%d entries) completed in %s",
		logutil.SanitizeForLog(path), logutil.SanitizeForLog(resolved), len(entries), time.Since(start))
	return resolved, entries, nil
}

// commandError prefers the remote shell's own complaint over the exit status.
func commandError(op, output string, err error) error {
	if msg := strings.TrimSpace(output); msg != "" {
		return fmt.Errorf("%s: %s: %w", op, msg, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ListingCommand returns the long-format listing command for path, preferring
// ISO timestamps and falling back to the default format when the remote ls
// does not support --time-style.
func ListingCommand(path string) string {
	p := QuotePath(path)
	return fmt.Sprintf("ls -la --time-style=long-iso %s 2>/dev/null || ls -la %s", p, p)
}

// ResolveCommand returns a command printing the absolute form of path.
func ResolveCommand(path string) string {
	return fmt.Sprintf("cd %s && pwd", QuotePath(path))
}

// QuotePath shell-quotes path while leaving a leading "~" or "~/" bare so the
// remote shell still expands it to the home directory.
func QuotePath(path string) string {
	switch {
	case path == "~":
		return "~"
	case strings.HasPrefix(path, "~/"):
		rest := path[2:]
		if rest == "" {
			return "~/"
		}
		return "~/" + shellQuote(rest)
	}
	return shellQuote(path)
}

// ParseListing parses `ls -la` output. Lines with fewer than eight fields are
// skipped, as are the "total" summary and the "." entry. The result is
// sorted with SortEntries.
func ParseListing(output string) []Entry {
	entries := make([]Entry, 0)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "total") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 8 {
			continue
		}

		size, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			size = 0
		}

		// long-iso: perms links owner group size 2024-01-15 10:30 name...
		// default:  perms links owner group size Jan 15 10:30 name...
		modified := fields[5] + " " + fields[6]
		var name string
		switch {
		case isISODate(fields[5]):
			name = strings.Join(fields[7:], " ")
		case len(fields) >= 9:
			name = strings.Join(fields[8:], " ")
		default:
			name = fields[7]
		}
		if name == "." {
			continue
		}

		perms := fields[0]
		typ := TypeFile
		switch {
		case strings.HasPrefix(perms, "d"):
			typ = TypeDirectory
		case strings.HasPrefix(perms, "l"):
			typ = TypeLink
			if i := strings.Index(name, " -> "); i > 0 {
				name = name[:i]
			}
		}

		entries = append(entries, Entry{
			Name:        name,
			Type:        typ,
			Permissions: perms,
			Owner:       fields[2],
			Group:       fields[3],
			Size:        size,
			Modified:    modified,
		})
	}

	SortEntries(entries)
	return entries
}

// isISODate reports whether s has the YYYY-MM-DD shape of a long-iso date.
func isISODate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i == 4 || i == 7 {
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SortEntries orders ".." first, then directories, then everything else,
// each group by case-insensitive name.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		switch {
		case a.Name == ".." && b.Name == "..":
			return 0
		case a.Name == "..":
			return -1
		case b.Name == "..":
			return 1
		}
		aDir, bDir := a.Type == TypeDirectory, b.Type == TypeDirectory
		if aDir != bDir {
			if aDir {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}

// ErrEmptyOutput is returned by Pwd when the remote command printed nothing.
var ErrEmptyOutput = errors.New("empty output")

// Pwd returns the working directory of a fresh exec session.
func Pwd(ctx context.Context, r Runner) (string, error) {
	out, err := r.Run(ctx, "pwd")
	if err != nil {
		return "", fmt.Errorf("pwd: %w", err)
	}
	path := strings.TrimSpace(out)
	if path == "" {
		return "", fmt.Errorf("pwd: %w", ErrEmptyOutput)
	}
	return path, nil
}

// shellQuote wraps s in single quotes, escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
