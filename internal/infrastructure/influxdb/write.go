package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDispatchOutcome records the terminal state of one dispatch cycle.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Tags: intent kind (automation/share/emergency) and terminal state.
//
// Example:
//
//	client.WriteDispatchOutcome("automation", "succeeded", "engine", 412)
func (c *Client) WriteDispatchOutcome(kind, state, executor string, durationMS int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dispatch_outcome",
		map[string]string{
			"kind":     kind,
			"state":    state,
			"executor": executor,
		},
		map[string]interface{}{
			"duration_ms": durationMS,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteResolveFailure records a resolution failure by error class.
//
// Used to spot fleets of stale or corrupted tags in the field: a spike in
// malformed_id points at tags written by a broken client.
func (c *Client) WriteResolveFailure(errorClass string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"resolve_failure",
		map[string]string{
			"class": errorClass,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteStepTiming records a single step execution inside a run.
func (c *Client) WriteStepTiming(executor, kind string, succeeded bool, durationMS int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"step_timing",
		map[string]string{
			"executor": executor,
			"kind":     kind,
		},
		map[string]interface{}{
			"succeeded":   succeeded,
			"duration_ms": durationMS,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
