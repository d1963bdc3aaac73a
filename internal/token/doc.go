// Package token signs and verifies the HS256 credentials handed to clients.
// A credential is self-describing: it embeds the subject id, username, and
// its own expiry, and is only ever trusted after signature verification.
package token
