// Package finger reads attendance logs and the user roster from a fingerprint
// terminal.
//
// A log read is a paginated session: one exchange per page, each response decoded
// in 12-byte records with any incomplete tail carried into the next page. The
// session ends once a page adds no records and leaves nothing pending. Every
// session owns its own ledger and cursor.
package finger
