package automation

import (
	"context"
	"errors"
	"time"
)

// Resolver turns a link-carried id into an automation record or a typed
// failure. It owns the UUID grammar gate: a malformed id never reaches
// the store, because it signals a corrupted or legacy link source rather
// than a deleted record.
type Resolver struct {
	repo   Repository
	logger Logger

	// resolveTimeout bounds one store round-trip.
	resolveTimeout time.Duration

	// retryDelay is the pause before the single ErrTransient retry.
	retryDelay time.Duration
}

// Resolution is the successful output of Resolve.
type Resolution struct {
	Automation *AutomationSummary

	// Ambiguous is set when the store returned more than one record for
	// the id. The violation is logged and resolved by taking the first
	// result — the user cannot fix store consistency — but callers
	// surface it distinctly.
	Ambiguous bool
}

const (
	defaultResolveTimeout = 5 * time.Second
	defaultRetryDelay     = 250 * time.Millisecond
)

// NewResolver creates a resolver over the given store.
func NewResolver(repo Repository, logger Logger) *Resolver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Resolver{
		repo:           repo,
		logger:         logger,
		resolveTimeout: defaultResolveTimeout,
		retryDelay:     defaultRetryDelay,
	}
}

// SetTimeouts overrides the per-attempt timeout and retry delay.
// Zero values keep the current settings.
func (r *Resolver) SetTimeouts(resolveTimeout, retryDelay time.Duration) {
	if resolveTimeout > 0 {
		r.resolveTimeout = resolveTimeout
	}
	if retryDelay > 0 {
		r.retryDelay = retryDelay
	}
}

// Resolve validates the id and looks it up in the store.
//
// Failure classes, each implying a different corrective action:
//   - ErrMalformedID: id fails the UUID grammar; checked before any
//     store call. The link source needs rewriting.
//   - ErrNotFound: well-formed id, no record. The automation was deleted.
//   - ErrTransient: store timeout or contention; retried once, then
//     surfaced as the only retryable class.
//
// A duplicate id (store-consistency violation) does not fail the resolve:
// the first record wins and Resolution.Ambiguous is set.
func (r *Resolver) Resolve(ctx context.Context, id string) (Resolution, error) {
	if err := ValidateID(id); err != nil {
		return Resolution{}, err
	}

	matches, err := r.findWithRetry(ctx, id)
	if err != nil {
		return Resolution{}, err
	}

	switch len(matches) {
	case 0:
		return Resolution{}, ErrNotFound
	case 1:
		return Resolution{Automation: matches[0].DeepCopy()}, nil
	default:
		r.logger.Warn("store returned multiple records for id, taking first",
			"id", id,
			"matches", len(matches),
		)
		return Resolution{Automation: matches[0].DeepCopy(), Ambiguous: true}, nil
	}
}

// findWithRetry performs the store lookup with one retry on ErrTransient.
func (r *Resolver) findWithRetry(ctx context.Context, id string) ([]AutomationSummary, error) {
	matches, err := r.findOnce(ctx, id)
	if err == nil || !errors.Is(err, ErrTransient) {
		return matches, err
	}

	r.logger.Debug("transient store error, retrying resolve", "id", id, "error", err)

	select {
	case <-time.After(r.retryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return r.findOnce(ctx, id)
}

// findOnce performs a single bounded store lookup.
func (r *Resolver) findOnce(ctx context.Context, id string) ([]AutomationSummary, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.resolveTimeout)
	defer cancel()

	return r.repo.FindByID(lookupCtx, id)
}
