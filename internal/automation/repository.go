package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for automation persistence (the
// Automation Store). The abstraction allows different implementations
// (SQLite, mock, remote) and enables unit testing without a database.
type Repository interface {
	// GetByID retrieves a single automation; ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*AutomationSummary, error)

	// FindByID retrieves every record carrying the id, in insertion
	// order. More than one result is a store-consistency violation the
	// resolver reports as ambiguous.
	FindByID(ctx context.Context, id string) ([]AutomationSummary, error)

	List(ctx context.Context) ([]AutomationSummary, error)
	ListByOwner(ctx context.Context, owner string) ([]AutomationSummary, error)
	ListByCategory(ctx context.Context, category Category) ([]AutomationSummary, error)
	Create(ctx context.Context, a *AutomationSummary) error
	Update(ctx context.Context, a *AutomationSummary) error
	Delete(ctx context.Context, id string) error
}

// automationColumns is the SELECT column list for automation queries.
const automationColumns = `id, title, description, steps, visibility, category, tags,
			owner, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
//
// The automations table is keyed by rowid with an index (not a unique
// constraint) on id: records arrive from device sync and import flows,
// and a duplicate id must surface as an ambiguity at resolve time rather
// than silently dropping one copy at write time.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an automation by its identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*AutomationSummary, error) {
	matches, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return &matches[0], nil
}

// FindByID retrieves every record carrying the id, oldest first.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) ([]AutomationSummary, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = ? ORDER BY rowid`
	return r.queryAutomations(ctx, query, id)
}

// List retrieves all automations ordered by title.
func (r *SQLiteRepository) List(ctx context.Context) ([]AutomationSummary, error) {
	query := `SELECT ` + automationColumns + ` FROM automations ORDER BY title, rowid`
	return r.queryAutomations(ctx, query)
}

// ListByOwner retrieves all automations created by an owner.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, owner string) ([]AutomationSummary, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE owner = ? ORDER BY title, rowid`
	return r.queryAutomations(ctx, query, owner)
}

// ListByCategory retrieves all automations in a category.
func (r *SQLiteRepository) ListByCategory(ctx context.Context, category Category) ([]AutomationSummary, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE category = ? ORDER BY title, rowid`
	return r.queryAutomations(ctx, query, string(category))
}

// Create inserts a new automation. The id must not already exist.
func (r *SQLiteRepository) Create(ctx context.Context, a *AutomationSummary) error {
	existing, err := r.FindByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: %s", ErrExists, a.ID)
	}

	stepsJSON, tagsJSON, err := marshalFields(a)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
		INSERT INTO automations (
			id, title, description, steps, visibility, category, tags,
			owner, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Title, a.Description, stepsJSON, string(a.Visibility),
		string(a.Category), tagsJSON, a.Owner, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return wrapStoreErr("inserting automation", err)
	}
	return nil
}

// Update replaces an existing automation.
func (r *SQLiteRepository) Update(ctx context.Context, a *AutomationSummary) error {
	stepsJSON, tagsJSON, err := marshalFields(a)
	if err != nil {
		return err
	}

	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE automations SET
			title = ?, description = ?, steps = ?, visibility = ?,
			category = ?, tags = ?, owner = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		a.Title, a.Description, stepsJSON, string(a.Visibility),
		string(a.Category), tagsJSON, a.Owner, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return wrapStoreErr("updating automation", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrapStoreErr("updating automation", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an automation (all rows carrying the id).
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM automations WHERE id = ?`, id)
	if err != nil {
		return wrapStoreErr("deleting automation", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrapStoreErr("deleting automation", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// queryAutomations executes a query and scans all resulting automations.
func (r *SQLiteRepository) queryAutomations(ctx context.Context, query string, args ...any) ([]AutomationSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr("querying automations", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iteration

	var automations []AutomationSummary
	for rows.Next() {
		a, scanErr := scanAutomation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning automation: %w", scanErr)
		}
		automations = append(automations, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("iterating automations", err)
	}
	return automations, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanAutomation.
type scanner interface {
	Scan(dest ...any) error
}

// scanAutomation scans one row into an AutomationSummary, decoding the
// JSON steps and tags columns.
func scanAutomation(row scanner) (*AutomationSummary, error) {
	var (
		a          AutomationSummary
		stepsJSON  []byte
		tagsJSON   []byte
		visibility string
		category   string
	)

	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &stepsJSON, &visibility,
		&category, &tagsJSON, &a.Owner, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Visibility = Visibility(visibility)
	a.Category = Category(category)

	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &a.Steps); err != nil {
			return nil, fmt.Errorf("unmarshalling steps: %w", err)
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &a.Tags); err != nil {
			return nil, fmt.Errorf("unmarshalling tags: %w", err)
		}
	}

	return &a, nil
}

// marshalFields encodes the JSON columns of an automation.
func marshalFields(a *AutomationSummary) (stepsJSON, tagsJSON []byte, err error) {
	stepsJSON, err = json.Marshal(a.Steps)
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling steps: %w", err)
	}
	tagsJSON, err = json.Marshal(a.Tags)
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling tags: %w", err)
	}
	return stepsJSON, tagsJSON, nil
}

// wrapStoreErr wraps a driver error, tagging retryable conditions
// (timeouts, lock contention) with ErrTransient so the resolver can
// distinguish them from hard failures.
func wrapStoreErr(op string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isTransient reports whether a store error is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
