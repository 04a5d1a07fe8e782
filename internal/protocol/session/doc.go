// Package session owns the request/response transport to a fingerprint terminal.
//
// Ownership boundary:
// - one TCP connection per exchange, released on every exit path
// - a single bounded receive per exchange (short reads are returned as-is)
// - reachability probing
// - backoff between failed sessions
//
// Pagination, carry-over and decoding live above this package.
package session
