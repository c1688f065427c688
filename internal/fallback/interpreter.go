package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/link"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StepStatus is the per-step outcome inside a fallback run.
type StepStatus string

const (
	StepSucceeded    StepStatus = "succeeded"
	StepFailed       StepStatus = "failed"
	StepIncompatible StepStatus = "incompatible"
)

// StepResult records the outcome of one step. Results accumulate for
// every step in the payload, attempted or skipped, and are reported only
// at run completion.
type StepResult struct {
	Index      int                 `json:"index"`
	Kind       automation.StepKind `json:"kind"`
	Status     StepStatus          `json:"status"`
	Error      string              `json:"error,omitempty"`
	DurationMS int64               `json:"duration_ms"`
}

// Result is the aggregate outcome of one fallback run. Success is true
// only if every attempted compatible step succeeded; incompatible steps
// are excluded from that judgement.
type Result struct {
	Success           bool                  `json:"success"`
	StepResults       []StepResult          `json:"step_results"`
	IncompatibleKinds []automation.StepKind `json:"incompatible_kinds,omitempty"`
}

// Interpreter executes embedded payloads with no native automation
// bridge. Its authority is strictly reduced from the engine's: only the
// user-visible intents exposed by Capabilities, no scheduling, no device
// configuration.
//
// Execution is fail-open: a step failure is recorded and never aborts
// sibling steps.
type Interpreter struct {
	caps   Capabilities
	logger Logger
}

// NewInterpreter creates an interpreter over the given host capabilities.
func NewInterpreter(caps Capabilities, logger Logger) *Interpreter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Interpreter{caps: caps, logger: logger}
}

// Execute runs the payload's steps strictly in declared order.
//
// Unsupported kinds are reported incompatible and skipped; per-step
// failures (including a panicking capability) are caught and recorded;
// neither interrupts the remaining steps. A delay step suspends only
// this run's sequencing, never the host.
func (in *Interpreter) Execute(ctx context.Context, payload link.EmbeddedPayload) Result {
	res := Result{
		Success:     true,
		StepResults: make([]StepResult, 0, len(payload.Steps)),
	}

	in.logger.Info("fallback run started",
		"automation_id", payload.ID,
		"title", payload.Title,
		"steps", len(payload.Steps),
	)

	for i, step := range payload.Steps {
		sr := StepResult{Index: i, Kind: step.Kind}

		if !step.Kind.FallbackCompatible() {
			sr.Status = StepIncompatible
			res.StepResults = append(res.StepResults, sr)
			res.IncompatibleKinds = appendKind(res.IncompatibleKinds, step.Kind)
			in.logger.Warn("step kind unsupported in fallback, skipping",
				"automation_id", payload.ID, "index", i, "kind", step.Kind)
			continue
		}

		started := time.Now()
		err := in.runStep(ctx, step)
		sr.DurationMS = time.Since(started).Milliseconds()

		if err != nil {
			sr.Status = StepFailed
			sr.Error = err.Error()
			res.Success = false
			in.logger.Warn("fallback step failed",
				"automation_id", payload.ID, "index", i, "kind", step.Kind, "error", err)
		} else {
			sr.Status = StepSucceeded
		}
		res.StepResults = append(res.StepResults, sr)
	}

	in.logger.Info("fallback run complete",
		"automation_id", payload.ID,
		"success", res.Success,
		"steps", len(res.StepResults),
		"incompatible", len(res.IncompatibleKinds),
	)
	return res
}

// runStep dispatches one step to its capability. The switch is total
// over the kind catalog: every kind outside the fallback subset has an
// explicit unsupported entry, so a new catalog kind fails loudly here
// instead of silently mismatching.
func (in *Interpreter) runStep(ctx context.Context, step automation.Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()

	cfg := step.Config
	switch step.Kind {
	case automation.KindNotification:
		return in.caps.Notify(ctx, automation.ConfigString(cfg, "title"), automation.ConfigString(cfg, "body"))
	case automation.KindSMS:
		return in.caps.ComposeSMS(ctx, automation.ConfigString(cfg, "to"), automation.ConfigString(cfg, "body"))
	case automation.KindCall:
		return in.caps.Dial(ctx, automation.ConfigString(cfg, "number"))
	case automation.KindEmail:
		return in.caps.ComposeEmail(ctx,
			automation.ConfigString(cfg, "to"),
			automation.ConfigString(cfg, "subject"),
			automation.ConfigString(cfg, "body"))
	case automation.KindOpenURL:
		return in.caps.OpenURL(ctx, automation.ConfigString(cfg, "url"))
	case automation.KindDelay:
		return in.delay(ctx, cfg)
	case automation.KindText:
		return in.caps.ShowText(ctx, automation.ConfigString(cfg, "text"))
	case automation.KindLocation:
		return in.locate(ctx)
	case automation.KindWifi, automation.KindBluetooth, automation.KindBrightness,
		automation.KindVolume, automation.KindAppLaunch:
		// Device-configuration kinds never run here; callers filter them
		// out before this switch.
		return fmt.Errorf("kind %q unsupported in fallback", step.Kind)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// delay suspends this run's sequencing, honouring cancellation.
func (in *Interpreter) delay(ctx context.Context, cfg map[string]any) error {
	d, ok := automation.ConfigDuration(cfg, "duration_ms")
	if !ok {
		return fmt.Errorf("delay step missing duration_ms")
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("delay interrupted: %w", ctx.Err())
	}
}

// locate resolves the device position and shows it. Denial or timeout
// surfaces as this step's failure only.
func (in *Interpreter) locate(ctx context.Context) error {
	pos, err := in.caps.Locate(ctx)
	if err != nil {
		return fmt.Errorf("locating device: %w", err)
	}
	return in.caps.ShowText(ctx, fmt.Sprintf("Current location: %.5f, %.5f", pos.Latitude, pos.Longitude))
}

// appendKind appends k if not already present.
func appendKind(kinds []automation.StepKind, k automation.StepKind) []automation.StepKind {
	for _, existing := range kinds {
		if existing == k {
			return kinds
		}
	}
	return append(kinds, k)
}
