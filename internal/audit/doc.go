// Package audit persists the dispatch audit trail: one record per
// transport event, terminal state included.
package audit
