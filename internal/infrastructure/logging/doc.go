// Package logging provides structured logging for the ZapTap link core.
//
// It wraps the standard library's log/slog with configuration-driven
// format and level selection, plus default service attributes applied
// to every record.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("dispatch complete", "state", "succeeded")
//
// Components should derive their own logger with With() so every record
// carries a component attribute:
//
//	dispatchLog := log.With("component", "dispatch")
package logging
