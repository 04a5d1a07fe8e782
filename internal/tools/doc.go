// Package tools runs host commands on behalf of device probes.
//
// Ownership boundary:
// - command execution helpers
//
// - exit-code normalization for missing binaries and non-zero exits
package tools
