// Package internal holds the parts of goCredential that are intentionally
// private to the module.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - metrics — lock-free counters and latency histograms
//
// # What this package must NOT do
//
//   - Export types that appear in the public goCredential API.
//   - Be imported by any package outside the goCredential module.
package internal
