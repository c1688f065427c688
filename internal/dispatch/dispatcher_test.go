package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/audit"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/engine"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/fallback"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/link"
)

const testID = "3fae1f6a-9c1b-4f7e-8a2d-5b6c7d8e9f0a"

// ─── Mocks ──────────────────────────────────────────────────────────────────

type mockResolver struct {
	calls int
	res   automation.Resolution
	err   error
}

func (m *mockResolver) Resolve(_ context.Context, _ string) (automation.Resolution, error) {
	m.calls++
	return m.res, m.err
}

type mockEngine struct {
	calls  int
	result engine.Result
}

func (m *mockEngine) Execute(_ context.Context, a *automation.AutomationSummary, cb engine.StepCallbacks) engine.Result {
	m.calls++
	for i, s := range a.EnabledSteps() {
		if cb.OnStepStart != nil {
			cb.OnStepStart(i, s)
		}
		if i < m.result.StepsCompleted {
			if cb.OnStepComplete != nil {
				cb.OnStepComplete(i, s)
			}
		} else if cb.OnStepError != nil {
			cb.OnStepError(i, s, errors.New("bridge unreachable"))
		}
	}
	return m.result
}

type mockFallback struct {
	calls    int
	payloads []link.EmbeddedPayload
	result   fallback.Result
}

func (m *mockFallback) Execute(_ context.Context, p link.EmbeddedPayload) fallback.Result {
	m.calls++
	m.payloads = append(m.payloads, p)
	return m.result
}

type mockRecorder struct {
	entries []audit.Entry
}

func (m *mockRecorder) Record(_ context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, *e)
	return nil
}

type harness struct {
	dp       *Dispatcher
	resolver *mockResolver
	engine   *mockEngine
	fallback *mockFallback
	recorder *mockRecorder
	results  []Outcome
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		resolver: &mockResolver{},
		engine:   &mockEngine{},
		fallback: &mockFallback{},
		recorder: &mockRecorder{},
	}
	codec := link.NewCodec("zaptap", "nfcautomate", "zaptap.app")
	h.dp = NewDispatcher(codec, h.resolver, h.engine, h.fallback, nil)
	h.dp.SetAudit(h.recorder)
	h.dp.SetHooks(Hooks{OnResult: func(o Outcome) { h.results = append(h.results, o) }})
	return h
}

func storedAutomation() *automation.AutomationSummary {
	return &automation.AutomationSummary{
		ID:    testID,
		Title: "Evening Routine",
		Steps: []automation.Step{
			{Kind: automation.KindNotification, Enabled: true},
			{Kind: automation.KindOpenURL, Enabled: true},
		},
	}
}

func encodedPayload(t *testing.T) string {
	t.Helper()
	encoded, err := link.EmbeddedPayload{
		ID:    testID,
		Title: "SOS",
		Steps: []automation.Step{
			{Kind: automation.KindCall, Config: map[string]any{"number": "+1555"}, Enabled: true},
			{Kind: automation.KindSMS, Config: map[string]any{"to": "+1555"}, Enabled: true},
		},
	}.Encode()
	if err != nil {
		t.Fatalf("encoding payload: %v", err)
	}
	return encoded
}

// ─── Scenarios ──────────────────────────────────────────────────────────────

// NFC happy path: universal link, 2-step automation in the store,
// confirm, engine completes 2/2, Succeeded.
func TestDispatchHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.resolver.res = automation.Resolution{Automation: storedAutomation()}
	h.engine.result = engine.Result{Success: true, StepsCompleted: 2, TotalSteps: 2}

	d, err := h.dp.Submit(ctx, "https://zaptap.app/link/"+testID, "nfc")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if d.State != StateConfirming {
		t.Fatalf("State = %q, want confirming", d.State)
	}
	if d.Title != "Evening Routine" {
		t.Errorf("Title = %q, want the resolved title", d.Title)
	}
	if !strings.Contains(d.Message, "Evening Routine") {
		t.Errorf("confirmation message %q does not name the automation", d.Message)
	}

	done, err := h.dp.Accept(ctx, d.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if done.State != StateSucceeded {
		t.Fatalf("State = %q, want succeeded", done.State)
	}
	if h.engine.calls != 1 {
		t.Errorf("engine calls = %d, want 1", h.engine.calls)
	}
	if len(h.results) != 1 {
		t.Fatalf("OnResult fired %d times, want 1", len(h.results))
	}
	o := h.results[0]
	if !o.Success || o.StepsCompleted != 2 || o.TotalSteps != 2 || o.Executor != ExecutorEngine {
		t.Errorf("outcome = %+v, want 2/2 engine success", o)
	}
	if h.dp.Active() != nil {
		t.Error("active slot not cleared after terminal transition")
	}
}

// Legacy scheme with a bad id still classifies as automation; the
// resolver reports MalformedId with its own wording.
func TestDispatchLegacySchemeBadID(t *testing.T) {
	h := newHarness(t)
	h.resolver.err = automation.ErrMalformedID

	d, err := h.dp.Submit(context.Background(), "nfcautomate://automation/abc123", "nfc")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if d.State != StateFailed {
		t.Fatalf("State = %q, want failed", d.State)
	}
	if d.AutomationID != "abc123" {
		t.Errorf("AutomationID = %q, want the raw segment", d.AutomationID)
	}
	if d.Message != msgMalformed {
		t.Errorf("Message = %q, want the malformed-link wording", d.Message)
	}
	if h.engine.calls != 0 {
		t.Error("engine ran for an unresolved dispatch")
	}
}

// Each resolution failure class gets distinct wording.
func TestDispatchDistinctFailureMessages(t *testing.T) {
	cases := []struct {
		err error
		msg string
	}{
		{automation.ErrMalformedID, msgMalformed},
		{automation.ErrNotFound, msgNotFound},
		{fmt.Errorf("%w: busy", automation.ErrTransient), msgTransient},
		{errors.New("disk exploded"), msgResolveInternal},
	}

	seen := map[string]bool{}
	for _, tc := range cases {
		h := newHarness(t)
		h.resolver.err = tc.err

		d, err := h.dp.Submit(context.Background(), "https://zaptap.app/link/"+testID, "qr")
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if d.Message != tc.msg {
			t.Errorf("error %v → message %q, want %q", tc.err, d.Message, tc.msg)
		}
		if seen[d.Message] {
			t.Errorf("message %q reused across failure classes", d.Message)
		}
		seen[d.Message] = true
	}
}

// Ambiguous resolutions confirm with different wording than a clean one.
func TestDispatchAmbiguousWording(t *testing.T) {
	h := newHarness(t)
	h.resolver.res = automation.Resolution{Automation: storedAutomation(), Ambiguous: true}

	d, err := h.dp.Submit(context.Background(), "https://zaptap.app/link/"+testID, "nfc")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if d.State != StateConfirming {
		t.Fatalf("State = %q, want confirming (ambiguity does not fail the dispatch)", d.State)
	}
	if !d.Ambiguous {
		t.Error("Ambiguous flag not surfaced")
	}
	if !strings.Contains(d.Message, "Duplicate") {
		t.Errorf("Message = %q, want distinct ambiguous wording", d.Message)
	}
}

// Share links present and terminate without touching either executor.
func TestDispatchSharePresented(t *testing.T) {
	h := newHarness(t)

	d, err := h.dp.Submit(context.Background(), "zaptap://share/"+testID+"?data="+encodedPayload(t), "share")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if d.State != StatePresented {
		t.Fatalf("State = %q, want presented", d.State)
	}
	if d.Title != "SOS" {
		t.Errorf("Title = %q, want the embedded title", d.Title)
	}
	if h.engine.calls != 0 || h.fallback.calls != 0 {
		t.Error("share dispatch reached an executor")
	}
	if h.resolver.calls != 0 {
		t.Error("share dispatch resolved for execution")
	}
	if len(h.results) != 1 || h.results[0].State != StatePresented {
		t.Errorf("results = %+v, want one presented outcome", h.results)
	}
}

// Emergency with embedded payload: resolver never called, one explicit
// accept still required, fallback executes the payload.
func TestDispatchEmergencyOffline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fallback.result = fallback.Result{
		Success: true,
		StepResults: []fallback.StepResult{
			{Index: 0, Kind: automation.KindCall, Status: fallback.StepSucceeded},
			{Index: 1, Kind: automation.KindSMS, Status: fallback.StepSucceeded},
		},
	}

	d, err := h.dp.Submit(ctx, "https://zaptap.app/emergency/"+testID+"?data="+encodedPayload(t), "qr")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if d.State != StateConfirming {
		t.Fatalf("State = %q, want confirming (no passive-scan execution)", d.State)
	}
	if h.resolver.calls != 0 {
		t.Error("resolver called despite embedded payload")
	}

	done, err := h.dp.Accept(ctx, "")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if done.State != StateSucceeded {
		t.Fatalf("State = %q, want succeeded", done.State)
	}
	if h.fallback.calls != 1 || h.engine.calls != 0 {
		t.Errorf("executor calls fallback/engine = %d/%d, want 1/0", h.fallback.calls, h.engine.calls)
	}
	if len(h.fallback.payloads) != 1 || len(h.fallback.payloads[0].Steps) != 2 {
		t.Errorf("fallback payload = %+v, want the 2 embedded steps", h.fallback.payloads)
	}
	if h.results[0].Executor != ExecutorFallback || h.results[0].StepsCompleted != 2 {
		t.Errorf("outcome = %+v, want fallback 2/2", h.results[0])
	}
}

// Emergency without a payload falls back to a normal resolve.
func TestDispatchEmergencyResolved(t *testing.T) {
	h := newHarness(t)
	h.resolver.res = automation.Resolution{Automation: storedAutomation()}

	d, err := h.dp.Submit(context.Background(), "https://zaptap.app/emergency/"+testID, "qr")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if d.State != StateConfirming {
		t.Fatalf("State = %q, want confirming", d.State)
	}
	if h.resolver.calls != 1 {
		t.Errorf("resolver calls = %d, want 1", h.resolver.calls)
	}
	if !strings.Contains(d.Message, "emergency") {
		t.Errorf("Message = %q, want emergency wording", d.Message)
	}
}

// Foreign URLs are ignored with no side effects at all.
func TestDispatchForeignURLSilent(t *testing.T) {
	h := newHarness(t)

	d, err := h.dp.Submit(context.Background(), "https://example.com/tools/export", "intent")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if d.State != StateIgnored {
		t.Fatalf("State = %q, want ignored", d.State)
	}
	if len(h.recorder.entries) != 0 {
		t.Error("foreign URL produced an audit entry")
	}
	if len(h.results) != 0 {
		t.Error("foreign URL fired OnResult")
	}
	if h.dp.Active() != nil {
		t.Error("ignored dispatch left the slot occupied")
	}
}

// A miss on our own domain is still ignored but is recorded.
func TestDispatchOwnDomainMissRecorded(t *testing.T) {
	h := newHarness(t)

	d, err := h.dp.Submit(context.Background(), "https://zaptap.app/pricing", "browser")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if d.State != StateIgnored {
		t.Fatalf("State = %q, want ignored", d.State)
	}
	if len(h.recorder.entries) != 1 || h.recorder.entries[0].FinalState != string(StateIgnored) {
		t.Errorf("entries = %+v, want one ignored audit entry", h.recorder.entries)
	}
}

// Declining discards the confirmation with no execution.
func TestDispatchDecline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.resolver.res = automation.Resolution{Automation: storedAutomation()}

	d, _ := h.dp.Submit(ctx, "https://zaptap.app/link/"+testID, "nfc")

	done, err := h.dp.Decline(ctx, d.ID)
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if done.State != StateIgnored {
		t.Fatalf("State = %q, want ignored", done.State)
	}
	if h.engine.calls != 0 {
		t.Error("declined dispatch executed")
	}
	if h.dp.Active() != nil {
		t.Error("declined dispatch left the slot occupied")
	}

	// Nothing is awaiting confirmation anymore.
	if _, err := h.dp.Accept(ctx, d.ID); !errors.Is(err, ErrNoActiveDispatch) {
		t.Errorf("Accept after decline = %v, want ErrNoActiveDispatch", err)
	}
}

func TestDispatchAcceptWrongID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.resolver.res = automation.Resolution{Automation: storedAutomation()}

	if _, err := h.dp.Submit(ctx, "https://zaptap.app/link/"+testID, "nfc"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := h.dp.Accept(ctx, "stale-prompt-id"); !errors.Is(err, ErrWrongDispatch) {
		t.Fatalf("Accept with stale id = %v, want ErrWrongDispatch", err)
	}
	// The real confirmation survives.
	if a := h.dp.Active(); a == nil || a.State != StateConfirming {
		t.Error("stale accept disturbed the active confirmation")
	}
}

// Race: a second transport event queues behind the first and is
// processed only after the first reaches a terminal state. Two
// simultaneous confirmations never exist.
func TestDispatchQueueSerialization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.resolver.res = automation.Resolution{Automation: storedAutomation()}
	h.engine.result = engine.Result{Success: true, StepsCompleted: 2, TotalSteps: 2}

	first, err := h.dp.Submit(ctx, "https://zaptap.app/link/"+testID, "nfc")
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}

	if _, err := h.dp.Submit(ctx, "https://zaptap.app/link/"+testID, "qr"); !errors.Is(err, ErrQueued) {
		t.Fatalf("Submit second = %v, want ErrQueued", err)
	}
	if h.dp.QueueDepth() != 1 {
		t.Fatalf("QueueDepth = %d, want 1", h.dp.QueueDepth())
	}
	// Still exactly one confirmation, and it is the first event's.
	if a := h.dp.Active(); a == nil || a.ID != first.ID {
		t.Fatal("queued event displaced the active confirmation")
	}

	if _, err := h.dp.Accept(ctx, first.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// The first terminal transition promoted the queued event, which has
	// now parked in its own Confirming state.
	a := h.dp.Active()
	if a == nil || a.State != StateConfirming {
		t.Fatalf("queued event not promoted: %+v", a)
	}
	if a.ID == first.ID {
		t.Error("promoted dispatch reuses the finished dispatch")
	}
	if h.dp.QueueDepth() != 0 {
		t.Errorf("QueueDepth = %d, want 0", h.dp.QueueDepth())
	}
	if h.resolver.calls != 2 {
		t.Errorf("resolver calls = %d, want 2", h.resolver.calls)
	}
}

func TestDispatchCancelActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.resolver.res = automation.Resolution{Automation: storedAutomation()}

	if h.dp.CancelActive(ctx) != nil {
		t.Error("CancelActive on idle machine returned a dispatch")
	}

	if _, err := h.dp.Submit(ctx, "https://zaptap.app/link/"+testID, "nfc"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	d := h.dp.CancelActive(ctx)
	if d == nil || d.State != StateIgnored {
		t.Fatalf("CancelActive = %+v, want ignored terminal", d)
	}
	if h.engine.calls != 0 {
		t.Error("cancelled dispatch executed")
	}
	if h.dp.Active() != nil {
		t.Error("cancelled dispatch left the slot occupied")
	}
}

// Partial engine completion is surfaced with per-step accounting.
func TestDispatchPartialFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.resolver.res = automation.Resolution{Automation: storedAutomation()}
	h.engine.result = engine.Result{Success: false, StepsCompleted: 1, TotalSteps: 2, Err: errors.New("bridge unreachable")}

	var stepErrors int
	h.dp.SetHooks(Hooks{
		OnStepError: func(string, int, automation.StepKind, error) { stepErrors++ },
		OnResult:    func(o Outcome) { h.results = append(h.results, o) },
	})

	d, _ := h.dp.Submit(ctx, "https://zaptap.app/link/"+testID, "nfc")
	done, err := h.dp.Accept(ctx, d.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if done.State != StateFailed {
		t.Fatalf("State = %q, want failed", done.State)
	}
	o := h.results[0]
	if o.Success || o.StepsCompleted != 1 || o.TotalSteps != 2 {
		t.Errorf("outcome = %+v, want 1/2 failure detail", o)
	}
	if stepErrors != 1 {
		t.Errorf("OnStepError fired %d times, want 1", stepErrors)
	}
	if !strings.Contains(o.Message, "1/2") {
		t.Errorf("Message = %q, want per-step accounting", o.Message)
	}
}

// Audit entries are written for every non-silent terminal.
func TestDispatchAuditTrail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.resolver.res = automation.Resolution{Automation: storedAutomation()}
	h.engine.result = engine.Result{Success: true, StepsCompleted: 2, TotalSteps: 2}

	d, _ := h.dp.Submit(ctx, "https://zaptap.app/link/"+testID, "nfc")
	if _, err := h.dp.Accept(ctx, d.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if len(h.recorder.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(h.recorder.entries))
	}
	e := h.recorder.entries[0]
	if e.DispatchID != d.ID || e.FinalState != string(StateSucceeded) || !e.Success {
		t.Errorf("entry = %+v", e)
	}
	if e.StepsCompleted != 2 || e.TotalSteps != 2 || e.Executor != ExecutorEngine {
		t.Errorf("entry accounting = %+v", e)
	}
}
