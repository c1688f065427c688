package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/audit"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/engine"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/fallback"
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

// Resolver turns an automation id into a record or a typed failure.
type Resolver interface {
	Resolve(ctx context.Context, id string) (automation.Resolution, error)
}

// EngineExecutor is the native automation engine collaborator.
type EngineExecutor interface {
	Execute(ctx context.Context, a *automation.AutomationSummary, cb engine.StepCallbacks) engine.Result
}

// FallbackExecutor runs embedded payloads without the native engine.
type FallbackExecutor interface {
	Execute(ctx context.Context, payload link.EmbeddedPayload) fallback.Result
}

// Recorder persists terminal dispatch outcomes.
type Recorder interface {
	Record(ctx context.Context, e *audit.Entry) error
}

// Metrics receives dispatch measurements. Implementations must be
// non-blocking.
type Metrics interface {
	WriteDispatchOutcome(kind, state, executor string, durationMS int64)
	WriteResolveFailure(errorClass string)
	WriteStepTiming(executor, kind string, succeeded bool, durationMS int64)
}

// Broadcaster pushes dispatch events to subscribed clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// WebSocket channels for dispatch events.
const (
	ChannelState  = "dispatch.state"
	ChannelStep   = "dispatch.step"
	ChannelResult = "dispatch.result"
)

type pending struct {
	raw    string
	source string
}

// Dispatcher classifies incoming transport events and drives each one
// through the confirm/execute state machine.
//
// At most one dispatch is in flight per instance: a transport event
// arriving mid-dispatch queues behind the active one, so confirmation
// prompts never stack. The single confirming slot is cleared on every
// terminal transition — a stale confirmation can never reappear after an
// unrelated new scan. Every path ends in a terminal state; nothing here
// is fatal to the host process.
type Dispatcher struct {
	codec        *link.Codec
	resolver     Resolver
	engineExec   EngineExecutor
	fallbackExec FallbackExecutor
	logger       Logger

	hooks   Hooks
	auditor Recorder
	metrics Metrics
	hub     Broadcaster

	mu     sync.Mutex
	active *Dispatch
	queue  []pending
}

// NewDispatcher creates a dispatcher over its collaborators.
func NewDispatcher(codec *link.Codec, resolver Resolver, engineExec EngineExecutor, fallbackExec FallbackExecutor, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		codec:        codec,
		resolver:     resolver,
		engineExec:   engineExec,
		fallbackExec: fallbackExec,
		logger:       logger,
	}
}

// SetHooks installs the presentation hooks.
func (dp *Dispatcher) SetHooks(h Hooks) { dp.hooks = h }

// SetAudit installs the audit recorder (may be nil).
func (dp *Dispatcher) SetAudit(r Recorder) { dp.auditor = r }

// SetMetrics installs the metrics sink (may be nil).
func (dp *Dispatcher) SetMetrics(m Metrics) { dp.metrics = m }

// SetBroadcaster installs the event broadcaster (may be nil).
func (dp *Dispatcher) SetBroadcaster(b Broadcaster) { dp.hub = b }

// ─── Submission ─────────────────────────────────────────────────────────────

// Submit feeds one transport event into the machine. Launch URLs and
// runtime URL events funnel through here identically.
//
// If no dispatch is active the event is processed on the calling
// goroutine until it either reaches a terminal state or parks in
// Confirming; the returned snapshot reflects that position. If a
// dispatch is already in flight the event queues and ErrQueued is
// returned; it will be processed after the active dispatch terminates.
func (dp *Dispatcher) Submit(ctx context.Context, raw, source string) (*Dispatch, error) {
	dp.mu.Lock()
	if dp.active != nil {
		dp.queue = append(dp.queue, pending{raw: raw, source: source})
		depth := len(dp.queue)
		dp.mu.Unlock()
		dp.logger.Info("transport event queued behind active dispatch",
			"source", source, "queue_depth", depth)
		return nil, ErrQueued
	}
	d := dp.begin(raw, source)
	dp.mu.Unlock()

	dp.process(ctx, d)
	return dp.snapshotLocked(d), nil
}

// begin creates the dispatch record and claims the active slot.
// Caller holds dp.mu.
func (dp *Dispatcher) begin(raw, source string) *Dispatch {
	d := &Dispatch{
		ID:          automation.GenerateID(),
		Source:      source,
		State:       StateClassifying,
		SubmittedAt: time.Now().UTC(),
		raw:         raw,
	}
	dp.active = d
	return d
}

// process drives a dispatch from Classifying until it parks in
// Confirming or reaches a terminal state.
func (dp *Dispatcher) process(ctx context.Context, d *Dispatch) {
	intent := dp.codec.Parse(d.raw)
	if intent == nil {
		// Foreign URLs drop silently; a miss on our own domain is logged.
		silent := !dp.codec.OwnDomain(d.raw)
		if !silent {
			dp.logger.Warn("unclassifiable URL on own domain, ignoring",
				"dispatch_id", d.ID, "source", d.Source)
		}
		dp.finish(ctx, d, Outcome{State: StateIgnored}, silent)
		return
	}

	dp.mu.Lock()
	d.intent = intent
	d.Kind = intent.Kind
	d.AutomationID = intent.AutomationID
	dp.mu.Unlock()

	dp.logger.Info("transport event classified",
		"dispatch_id", d.ID,
		"kind", intent.Kind,
		"automation_id", intent.AutomationID,
		"embedded", intent.Payload != nil,
		"source", d.Source,
	)

	switch intent.Kind {
	case link.KindShare:
		dp.present(ctx, d)
	case link.KindEmergency:
		if intent.Payload != nil {
			// Embedded payload outranks a network resolve: assume no
			// connectivity on the emergency path.
			dp.park(d, intent.Payload.Title, fmt.Sprintf(msgConfirmEmergency, intent.Payload.Title))
			return
		}
		dp.resolve(ctx, d)
	default:
		dp.resolve(ctx, d)
	}
}

// present terminates a share dispatch for viewing. Share links never
// reach Executing and never touch the engine or interpreter.
func (dp *Dispatcher) present(ctx context.Context, d *Dispatch) {
	msg := msgPresentedNoTitle
	if p := d.intent.Payload; p != nil {
		dp.mu.Lock()
		d.Title = p.Title
		dp.mu.Unlock()
		msg = fmt.Sprintf(msgPresented, p.Title)
	}
	dp.finish(ctx, d, Outcome{State: StatePresented, Message: msg}, false)
}

// resolve looks the intent's id up in the store, translating each
// failure class into its own user message.
func (dp *Dispatcher) resolve(ctx context.Context, d *Dispatch) {
	dp.setState(d, StateResolving, "")

	res, err := dp.resolver.Resolve(ctx, d.AutomationID)
	if err != nil {
		var class, msg string
		switch {
		case errors.Is(err, automation.ErrMalformedID):
			class, msg = "malformed_id", msgMalformed
		case errors.Is(err, automation.ErrNotFound):
			class, msg = "not_found", msgNotFound
		case errors.Is(err, automation.ErrTransient):
			class, msg = "transient", msgTransient
		default:
			class, msg = "internal", msgResolveInternal
		}
		if dp.metrics != nil {
			dp.metrics.WriteResolveFailure(class)
		}
		dp.logger.Warn("resolution failed",
			"dispatch_id", d.ID, "automation_id", d.AutomationID, "class", class, "error", err)
		dp.finish(ctx, d, Outcome{State: StateFailed, Message: msg}, false)
		return
	}

	dp.mu.Lock()
	d.automation = res.Automation
	d.Ambiguous = res.Ambiguous
	dp.mu.Unlock()

	msg := fmt.Sprintf(msgConfirm, res.Automation.Title)
	if res.Ambiguous {
		msg = fmt.Sprintf(msgConfirmAmbiguous, res.Automation.Title)
	}
	if d.Kind == link.KindEmergency {
		msg = fmt.Sprintf(msgConfirmEmergency, res.Automation.Title)
	}
	dp.park(d, res.Automation.Title, msg)
}

// park moves the dispatch into Confirming and holds it there until the
// user responds or the session ends. Every execution requires exactly
// one explicit acceptance, even for a previously-run target: the same
// physical tag can be repointed by its owner at any time.
func (dp *Dispatcher) park(d *Dispatch, title, msg string) {
	dp.mu.Lock()
	d.Title = title
	d.State = StateConfirming
	d.Message = msg
	dp.mu.Unlock()

	dp.logger.Info("awaiting confirmation", "dispatch_id", d.ID, "title", title)
	dp.broadcastState(d)
}

// ─── Confirmation ───────────────────────────────────────────────────────────

// Accept confirms the dispatch awaiting confirmation and executes it on
// the calling goroutine. An empty id accepts whatever is confirming; a
// non-empty id must match it, rejecting stale prompts.
func (dp *Dispatcher) Accept(ctx context.Context, id string) (*Dispatch, error) {
	d, err := dp.takeConfirming(id, StateExecuting, "")
	if err != nil {
		return nil, err
	}
	dp.broadcastState(d)
	dp.execute(ctx, d)
	return dp.snapshotLocked(d), nil
}

// Decline discards the dispatch awaiting confirmation with no side
// effects. The declined confirmation is never persisted for later.
func (dp *Dispatcher) Decline(ctx context.Context, id string) (*Dispatch, error) {
	d, err := dp.takeConfirming(id, StateConfirming, "")
	if err != nil {
		return nil, err
	}
	dp.finish(ctx, d, Outcome{State: StateIgnored, Message: msgDeclined}, false)
	return dp.snapshotLocked(d), nil
}

// takeConfirming atomically claims the confirming dispatch, optionally
// checking its id, and moves it to next.
func (dp *Dispatcher) takeConfirming(id string, next State, msg string) (*Dispatch, error) {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	d := dp.active
	if d == nil || d.State != StateConfirming {
		return nil, ErrNoActiveDispatch
	}
	if id != "" && id != d.ID {
		return nil, ErrWrongDispatch
	}
	d.State = next
	if msg != "" {
		d.Message = msg
	}
	return d, nil
}

// CancelActive aborts whatever dispatch is in flight — session end,
// navigation away — with no side effects. Returns the terminal snapshot,
// or nil when the machine was idle.
func (dp *Dispatcher) CancelActive(ctx context.Context) *Dispatch {
	dp.mu.Lock()
	d := dp.active
	if d == nil || d.State.Terminal() {
		dp.mu.Unlock()
		return nil
	}
	dp.mu.Unlock()

	dp.finish(ctx, d, Outcome{State: StateIgnored, Message: msgCancelled}, false)
	return dp.snapshotLocked(d)
}

// Active returns a snapshot of the in-flight dispatch, or nil when idle.
func (dp *Dispatcher) Active() *Dispatch {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if dp.active == nil {
		return nil
	}
	return dp.active.snapshot()
}

// QueueDepth returns the number of transport events waiting behind the
// active dispatch.
func (dp *Dispatcher) QueueDepth() int {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return len(dp.queue)
}

// ─── Execution ──────────────────────────────────────────────────────────────

// execute delegates to the fallback interpreter when the intent carries
// an embedded emergency payload, otherwise to the native engine. Either
// way the terminal outcome carries per-step accounting.
func (dp *Dispatcher) execute(ctx context.Context, d *Dispatch) {
	started := time.Now()

	var o Outcome
	if d.Kind == link.KindEmergency && d.intent.Payload != nil {
		o = dp.executeFallback(ctx, d)
	} else {
		o = dp.executeEngine(ctx, d)
	}
	o.Duration = time.Since(started)

	dp.finish(ctx, d, o, false)
}

func (dp *Dispatcher) executeEngine(ctx context.Context, d *Dispatch) Outcome {
	cb := engine.StepCallbacks{
		OnStepStart: func(i int, s automation.Step) {
			if dp.hooks.OnStepStart != nil {
				dp.hooks.OnStepStart(d.ID, i, s.Kind)
			}
			dp.broadcastStep(d, i, s.Kind, "started", "")
		},
		OnStepComplete: func(i int, s automation.Step) {
			if dp.hooks.OnStepComplete != nil {
				dp.hooks.OnStepComplete(d.ID, i, s.Kind)
			}
			dp.broadcastStep(d, i, s.Kind, "completed", "")
		},
		OnStepError: func(i int, s automation.Step, err error) {
			if dp.hooks.OnStepError != nil {
				dp.hooks.OnStepError(d.ID, i, s.Kind, err)
			}
			dp.broadcastStep(d, i, s.Kind, "failed", err.Error())
		},
	}

	res := dp.engineExec.Execute(ctx, d.automation, cb)

	o := Outcome{
		Executor:       ExecutorEngine,
		Success:        res.Success,
		StepsCompleted: res.StepsCompleted,
		TotalSteps:     res.TotalSteps,
	}
	if res.Success {
		o.State = StateSucceeded
		o.Message = fmt.Sprintf("Ran %q: %d/%d steps completed.", d.Title, res.StepsCompleted, res.TotalSteps)
	} else {
		o.State = StateFailed
		o.Message = fmt.Sprintf("Run of %q incomplete: %d/%d steps completed.", d.Title, res.StepsCompleted, res.TotalSteps)
		if res.Err != nil {
			o.Message += " " + res.Err.Error()
		}
	}
	return o
}

func (dp *Dispatcher) executeFallback(ctx context.Context, d *Dispatch) Outcome {
	res := dp.fallbackExec.Execute(ctx, *d.intent.Payload)

	completed := 0
	for _, sr := range res.StepResults {
		switch sr.Status {
		case fallback.StepSucceeded:
			completed++
			if dp.hooks.OnStepComplete != nil {
				dp.hooks.OnStepComplete(d.ID, sr.Index, sr.Kind)
			}
			dp.broadcastStep(d, sr.Index, sr.Kind, "completed", "")
		case fallback.StepFailed:
			if dp.hooks.OnStepError != nil {
				dp.hooks.OnStepError(d.ID, sr.Index, sr.Kind, errors.New(sr.Error))
			}
			dp.broadcastStep(d, sr.Index, sr.Kind, "failed", sr.Error)
		case fallback.StepIncompatible:
			dp.broadcastStep(d, sr.Index, sr.Kind, "incompatible", "")
		}
		if dp.metrics != nil && sr.Status != fallback.StepIncompatible {
			dp.metrics.WriteStepTiming(ExecutorFallback, string(sr.Kind), sr.Status == fallback.StepSucceeded, sr.DurationMS)
		}
	}

	o := Outcome{
		Executor:       ExecutorFallback,
		Success:        res.Success,
		StepsCompleted: completed,
		TotalSteps:     len(res.StepResults),
	}
	if res.Success {
		o.State = StateSucceeded
		o.Message = fmt.Sprintf("Ran %q offline: %d/%d steps completed.", d.Title, completed, len(res.StepResults))
	} else {
		o.State = StateFailed
		o.Message = fmt.Sprintf("Offline run of %q incomplete: %d/%d steps completed.", d.Title, completed, len(res.StepResults))
	}
	return o
}

// ─── Terminal handling ──────────────────────────────────────────────────────

// finish applies the terminal outcome, clears the active slot, reports
// the result, and starts the next queued event. silent terminals
// (foreign URLs) skip audit, metrics, and hooks entirely.
func (dp *Dispatcher) finish(ctx context.Context, d *Dispatch, o Outcome, silent bool) {
	o.DispatchID = d.ID
	o.Kind = d.Kind
	o.AutomationID = d.AutomationID

	dp.mu.Lock()
	d.State = o.State
	d.Message = o.Message
	d.Outcome = &o
	var next *Dispatch
	if dp.active == d {
		dp.active = nil
		if len(dp.queue) > 0 {
			p := dp.queue[0]
			dp.queue = dp.queue[1:]
			next = dp.begin(p.raw, p.source)
		}
	}
	dp.mu.Unlock()

	dp.logger.Info("dispatch terminal",
		"dispatch_id", d.ID,
		"state", o.State,
		"kind", d.Kind,
		"automation_id", d.AutomationID,
		"executor", o.Executor,
		"completed", o.StepsCompleted,
		"total", o.TotalSteps,
	)

	if !silent {
		dp.record(ctx, d, o)
		if dp.metrics != nil {
			dp.metrics.WriteDispatchOutcome(string(d.Kind), string(o.State), o.Executor, o.Duration.Milliseconds())
		}
		dp.broadcastState(d)
		if dp.hub != nil {
			dp.hub.Broadcast(ChannelResult, o)
		}
		if dp.hooks.OnResult != nil {
			dp.hooks.OnResult(o)
		}
	}

	if next != nil {
		dp.process(ctx, next)
	}
}

// record persists the audit entry; a failed write never affects the
// dispatch outcome.
func (dp *Dispatcher) record(ctx context.Context, d *Dispatch, o Outcome) {
	if dp.auditor == nil {
		return
	}
	e := &audit.Entry{
		DispatchID:     d.ID,
		Kind:           string(d.Kind),
		AutomationID:   d.AutomationID,
		FinalState:     string(o.State),
		Executor:       o.Executor,
		Success:        o.Success,
		StepsCompleted: o.StepsCompleted,
		TotalSteps:     o.TotalSteps,
		DurationMS:     o.Duration.Milliseconds(),
		Detail:         o.Message,
	}
	if err := dp.auditor.Record(ctx, e); err != nil {
		dp.logger.Error("failed to record dispatch audit entry",
			"dispatch_id", d.ID, "error", err)
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (dp *Dispatcher) setState(d *Dispatch, s State, msg string) {
	dp.mu.Lock()
	d.State = s
	if msg != "" {
		d.Message = msg
	}
	dp.mu.Unlock()
	dp.broadcastState(d)
}

func (dp *Dispatcher) snapshotLocked(d *Dispatch) *Dispatch {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return d.snapshot()
}

func (dp *Dispatcher) broadcastState(d *Dispatch) {
	if dp.hub == nil {
		return
	}
	dp.hub.Broadcast(ChannelState, dp.snapshotLocked(d))
}

func (dp *Dispatcher) broadcastStep(d *Dispatch, index int, kind automation.StepKind, status, errMsg string) {
	if dp.hub == nil {
		return
	}
	payload := map[string]any{
		"dispatch_id": d.ID,
		"index":       index,
		"kind":        string(kind),
		"status":      status,
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	dp.hub.Broadcast(ChannelStep, payload)
}
