// Package influxdb records dispatch metrics for the ZapTap link core.
//
// Points are written non-blocking through the InfluxDB v2 batched write
// API: one point per terminal dispatch outcome, one per resolution
// failure class, and per-step timings from either executor. Metrics are
// optional; a nil client is safe and every write becomes a no-op.
package influxdb
