// Package sshkeys parses the private key material users paste into the
// connect form and builds host key policies for outgoing connections.
//
// Keys may be PEM or OpenSSH encoded, optionally protected by a passphrase.
// Malformed material yields [ErrInvalidKey] and an encrypted key without a
// passphrase yields [ErrPassphraseRequired], so callers can report
// AUTH_FAILED without echoing the key back.
//
// [HostKeyCallback] verifies servers against a known_hosts file. Without one,
// any host key is accepted, which matches connecting to arbitrary hosts
// typed in by the user.
//
// [GenerateKeyPair] creates ED25519 pairs for in-process test servers.
package sshkeys
