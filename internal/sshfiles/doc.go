// Package sshfiles lists remote directories by running `ls` over an SSH exec
// session and parsing its text output.
//
// Listing runs two commands through a [Runner]: the listing itself
// (`ls -la --time-style=long-iso P 2>/dev/null || ls -la P`) and a path
// resolution (`cd P && pwd`) that turns relative paths and "~" into the
// absolute path the entries belong to.
//
// [ParseListing] is pure and handles both the long-iso and the default ls
// timestamp formats, names containing spaces, and symlink arrows. Entries
// are ordered by [SortEntries]: ".." first, then directories, then the rest,
// case-insensitively by name.
//
// All path arguments are wrapped in single quotes with embedded quotes
// escaped, except for a leading "~" which must stay bare for tilde expansion.
package sshfiles
