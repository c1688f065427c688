package dispatch

import (
	"time"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/link"
)

// State is one position in the dispatch state machine.
type State string

const (
	StateIdle        State = "idle"
	StateClassifying State = "classifying"
	StateResolving   State = "resolving"
	StateConfirming  State = "confirming"
	StateExecuting   State = "executing"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateIgnored     State = "ignored"
	StatePresented   State = "presented"
)

// Terminal reports whether s ends a dispatch cycle.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateIgnored, StatePresented:
		return true
	}
	return false
}

// Executor names which component ran the steps of a dispatch.
const (
	ExecutorEngine   = "engine"
	ExecutorFallback = "fallback"
)

// Dispatch is one transport event moving through the machine. Snapshots
// returned by the dispatcher are copies; only the dispatcher mutates the
// live record.
type Dispatch struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	State       State     `json:"state"`
	Kind        link.Kind `json:"kind,omitempty"`
	AutomationID string   `json:"automation_id,omitempty"`
	Title       string    `json:"title,omitempty"`

	// Ambiguous marks a resolve that found duplicate store records; the
	// first record was taken but the confirmation wording differs.
	Ambiguous bool `json:"ambiguous,omitempty"`

	// Message is the user-facing text for the current state. Each
	// resolution failure class gets distinct wording, never a generic
	// error.
	Message string `json:"message,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	Outcome     *Outcome  `json:"outcome,omitempty"`

	raw        string
	intent     *link.Intent
	automation *automation.AutomationSummary
}

// snapshot returns a copy safe to hand outside the dispatcher.
func (d *Dispatch) snapshot() *Dispatch {
	cpy := *d
	cpy.intent = nil
	cpy.automation = nil
	if d.Outcome != nil {
		o := *d.Outcome
		cpy.Outcome = &o
	}
	return &cpy
}

// Outcome is the terminal report of one dispatch, delivered to the
// OnResult hook and the audit trail with per-step accounting — never
// swallowed.
type Outcome struct {
	DispatchID     string        `json:"dispatch_id"`
	Kind           link.Kind     `json:"kind,omitempty"`
	AutomationID   string        `json:"automation_id,omitempty"`
	State          State         `json:"state"`
	Executor       string        `json:"executor,omitempty"`
	Success        bool          `json:"success"`
	StepsCompleted int           `json:"steps_completed"`
	TotalSteps     int           `json:"total_steps"`
	Duration       time.Duration `json:"duration"`
	Message        string        `json:"message,omitempty"`
}

// Hooks receive dispatch progress for any presentation layer. Any hook
// may be nil. Hooks run synchronously on the dispatching goroutine.
type Hooks struct {
	OnStepStart    func(dispatchID string, index int, kind automation.StepKind)
	OnStepComplete func(dispatchID string, index int, kind automation.StepKind)
	OnStepError    func(dispatchID string, index int, kind automation.StepKind, err error)
	OnResult       func(Outcome)
}

// User-facing messages. Each resolution failure class implies a
// different corrective action, so each gets its own wording.
const (
	msgConfirm          = "Run %q?"
	msgConfirmAmbiguous = "Duplicate copies of this automation were found; showing the first. Run %q?"
	msgConfirmEmergency = "Run emergency automation %q now?"
	msgPresented        = "Shared automation %q."
	msgPresentedNoTitle = "Shared automation received."
	msgMalformed        = "This link is damaged or was written by an old app version. The tag needs rewriting."
	msgNotFound         = "This automation no longer exists. It may have been deleted by its owner."
	msgTransient        = "The automation store could not be reached. Check the connection and try again."
	msgResolveInternal  = "Something went wrong looking up this automation."
	msgDeclined         = "Dispatch declined; nothing was run."
	msgCancelled        = "Dispatch cancelled; nothing was run."
)
