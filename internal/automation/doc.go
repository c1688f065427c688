// Package automation holds the automation data model and the Automation
// Store: the AutomationSummary/Step types, validation, SQLite persistence,
// a cached registry for API reads, and the Resolver that turns a
// link-carried id into a record or a typed failure.
//
// # Resolution contract
//
// Resolve distinguishes four failure classes because each implies a
// different corrective action:
//
//   - ErrMalformedID: the id fails the UUID grammar (corrupted or legacy
//     link — the tag needs rewriting). Checked before any store call.
//   - ErrNotFound: a well-formed id with no record (deleted automation).
//   - ambiguous: the store holds duplicate records for the id; logged,
//     resolved by taking the first, surfaced via Resolution.Ambiguous.
//   - ErrTransient: timeouts and lock contention, the only retryable
//     class.
//
// These are never coalesced into a generic error.
package automation
