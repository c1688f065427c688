package automation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// ─── Mock Repository ────────────────────────────────────────────────────────

// mockRepository implements Repository for resolver tests. FindByID
// returns scripted results per call; every other method panics because
// the resolver must never touch them.
type mockRepository struct {
	findCalls   int
	findResults [][]AutomationSummary
	findErrs    []error
}

func (m *mockRepository) FindByID(_ context.Context, _ string) ([]AutomationSummary, error) {
	i := m.findCalls
	m.findCalls++
	if i >= len(m.findErrs) {
		return nil, fmt.Errorf("unexpected FindByID call %d", i+1)
	}
	return m.findResults[i], m.findErrs[i]
}

func (m *mockRepository) GetByID(context.Context, string) (*AutomationSummary, error) {
	panic("resolver must not call GetByID")
}
func (m *mockRepository) List(context.Context) ([]AutomationSummary, error) {
	panic("resolver must not call List")
}
func (m *mockRepository) ListByOwner(context.Context, string) ([]AutomationSummary, error) {
	panic("resolver must not call ListByOwner")
}
func (m *mockRepository) ListByCategory(context.Context, Category) ([]AutomationSummary, error) {
	panic("resolver must not call ListByCategory")
}
func (m *mockRepository) Create(context.Context, *AutomationSummary) error {
	panic("resolver must not call Create")
}
func (m *mockRepository) Update(context.Context, *AutomationSummary) error {
	panic("resolver must not call Update")
}
func (m *mockRepository) Delete(context.Context, string) error {
	panic("resolver must not call Delete")
}

// fastResolver builds a resolver with short timings for tests.
func fastResolver(repo Repository) *Resolver {
	r := NewResolver(repo, nil)
	r.SetTimeouts(time.Second, time.Millisecond)
	return r
}

// ─── Resolve ────────────────────────────────────────────────────────────────

func TestResolveMalformedIDSkipsStore(t *testing.T) {
	repo := &mockRepository{}
	r := fastResolver(repo)

	_, err := r.Resolve(context.Background(), "not-a-uuid")
	if !errors.Is(err, ErrMalformedID) {
		t.Fatalf("Resolve = %v, want ErrMalformedID", err)
	}
	if repo.findCalls != 0 {
		t.Errorf("store queried %d times for malformed id, want 0", repo.findCalls)
	}
}

func TestResolveNotFound(t *testing.T) {
	repo := &mockRepository{
		findResults: [][]AutomationSummary{nil},
		findErrs:    []error{nil},
	}
	r := fastResolver(repo)

	_, err := r.Resolve(context.Background(), testID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve = %v, want ErrNotFound", err)
	}
	if repo.findCalls != 1 {
		t.Errorf("store queried %d times, want 1", repo.findCalls)
	}
}

func TestResolveSingleMatch(t *testing.T) {
	a := testAutomation()
	repo := &mockRepository{
		findResults: [][]AutomationSummary{{*a}},
		findErrs:    []error{nil},
	}
	r := fastResolver(repo)

	res, err := r.Resolve(context.Background(), testID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Automation == nil || res.Automation.ID != a.ID {
		t.Fatalf("Resolve returned wrong automation: %+v", res.Automation)
	}
	if res.Ambiguous {
		t.Error("single match flagged ambiguous")
	}

	// The result must be independent of repository state.
	res.Automation.Steps[0].Config["title"] = "mutated"
	if a.Steps[0].Config["title"] == "mutated" {
		t.Error("resolution shares step config with the store record")
	}
}

func TestResolveAmbiguousTakesFirst(t *testing.T) {
	first := testAutomation()
	first.Title = "First Copy"
	second := testAutomation()
	second.Title = "Second Copy"

	repo := &mockRepository{
		findResults: [][]AutomationSummary{{*first, *second}},
		findErrs:    []error{nil},
	}
	r := fastResolver(repo)

	res, err := r.Resolve(context.Background(), testID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Ambiguous {
		t.Error("duplicate records not flagged ambiguous")
	}
	if res.Automation.Title != "First Copy" {
		t.Errorf("Resolve took %q, want the first record", res.Automation.Title)
	}
}

// ─── Retry ──────────────────────────────────────────────────────────────────

func TestResolveRetriesTransientOnce(t *testing.T) {
	a := testAutomation()
	repo := &mockRepository{
		findResults: [][]AutomationSummary{nil, {*a}},
		findErrs:    []error{fmt.Errorf("%w: busy", ErrTransient), nil},
	}
	r := fastResolver(repo)

	res, err := r.Resolve(context.Background(), testID)
	if err != nil {
		t.Fatalf("Resolve after retry: %v", err)
	}
	if res.Automation == nil {
		t.Fatal("Resolve returned nil automation after successful retry")
	}
	if repo.findCalls != 2 {
		t.Errorf("store queried %d times, want 2", repo.findCalls)
	}
}

func TestResolveTransientExhausted(t *testing.T) {
	transient := fmt.Errorf("%w: busy", ErrTransient)
	repo := &mockRepository{
		findResults: [][]AutomationSummary{nil, nil},
		findErrs:    []error{transient, transient},
	}
	r := fastResolver(repo)

	_, err := r.Resolve(context.Background(), testID)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("Resolve = %v, want ErrTransient", err)
	}
	if repo.findCalls != 2 {
		t.Errorf("store queried %d times, want exactly 2 (one retry)", repo.findCalls)
	}
}

func TestResolveHardErrorNotRetried(t *testing.T) {
	hard := errors.New("disk I/O error")
	repo := &mockRepository{
		findResults: [][]AutomationSummary{nil},
		findErrs:    []error{hard},
	}
	r := fastResolver(repo)

	_, err := r.Resolve(context.Background(), testID)
	if !errors.Is(err, hard) {
		t.Fatalf("Resolve = %v, want the hard error surfaced", err)
	}
	if repo.findCalls != 1 {
		t.Errorf("store queried %d times, want 1 (no retry on hard errors)", repo.findCalls)
	}
}

func TestResolveCancelledDuringRetryDelay(t *testing.T) {
	repo := &mockRepository{
		findResults: [][]AutomationSummary{nil},
		findErrs:    []error{fmt.Errorf("%w: busy", ErrTransient)},
	}
	r := NewResolver(repo, nil)
	r.SetTimeouts(time.Second, time.Hour) // retry delay long enough to cancel into

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, testID)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Resolve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve did not return after cancellation")
	}
	if repo.findCalls != 1 {
		t.Errorf("store queried %d times, want 1", repo.findCalls)
	}
}
