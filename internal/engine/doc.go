// Package engine is the native automation executor. It turns an
// automation's steps into MQTT commands for the executor bridges and
// reports per-step accounting back to the dispatcher.
package engine
