// Package dispatch drives one transport event — an NFC scan, a QR scan,
// a tapped share link — through classification, resolution, user
// confirmation, and execution to a terminal outcome.
//
// # State machine
//
//	Idle → Classifying → Resolving → Confirming → Executing → Succeeded
//	                   ↘ Ignored              ↘ Ignored    ↘ Failed
//	                   ↘ Presented (share)
//
// Events are serialized: one dispatch in flight, later events queued
// FIFO. Execution always requires one explicit user acceptance first,
// and the single confirming slot is cleared on every terminal
// transition.
package dispatch
