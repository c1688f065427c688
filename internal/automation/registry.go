package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides automation management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups by
// the API and link generator.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations. The resolver deliberately goes
// to the Repository instead: ambiguity detection needs to see duplicate
// rows the cache cannot hold.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*AutomationSummary
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new automation registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*AutomationSummary),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all automations from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	automations, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading automations: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*AutomationSummary, len(automations))
	for i := range automations {
		a := automations[i]
		r.cache[a.ID] = a.DeepCopy()
	}

	r.logger.Info("automation cache refreshed", "count", len(automations))
	return nil
}

// Get retrieves an automation by id from the cache.
// The returned automation is a deep copy; callers can safely modify it.
func (r *Registry) Get(_ context.Context, id string) (*AutomationSummary, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	return nil, ErrNotFound
}

// List retrieves all automations from the cache.
// Returns deep copies sorted by title for deterministic ordering.
func (r *Registry) List(_ context.Context) ([]AutomationSummary, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	automations := make([]AutomationSummary, 0, len(r.cache))
	for _, a := range r.cache {
		automations = append(automations, *a.DeepCopy())
	}
	sortAutomations(automations)
	return automations, nil
}

// ListByCategory retrieves all cached automations in a category.
func (r *Registry) ListByCategory(_ context.Context, category Category) ([]AutomationSummary, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var automations []AutomationSummary
	for _, a := range r.cache {
		if a.Category == category {
			automations = append(automations, *a.DeepCopy())
		}
	}
	sortAutomations(automations)
	return automations, nil
}

// sortAutomations sorts by title then id, matching the DB query ordering.
func sortAutomations(automations []AutomationSummary) {
	sort.Slice(automations, func(i, j int) bool {
		if automations[i].Title != automations[j].Title {
			return automations[i].Title < automations[j].Title
		}
		return automations[i].ID < automations[j].ID
	})
}

// Create validates, persists, and caches a new automation.
func (r *Registry) Create(ctx context.Context, a *AutomationSummary) error {
	if a.ID == "" {
		a.ID = GenerateID()
	}
	if a.Visibility == "" {
		a.Visibility = VisibilityPrivate
	}

	if err := ValidateAutomation(a); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, a); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[a.ID] = a.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("automation created", "id", a.ID, "title", a.Title)
	return nil
}

// Update validates, persists, and updates the cached automation.
func (r *Registry) Update(ctx context.Context, a *AutomationSummary) error {
	if err := ValidateAutomation(a); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, a); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[a.ID] = a.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("automation updated", "id", a.ID, "title", a.Title)
	return nil
}

// Delete removes an automation from persistence and cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("automation deleted", "id", id)
	return nil
}

// Count returns the number of cached automations.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
