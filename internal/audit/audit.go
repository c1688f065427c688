package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
)

// Entry is one dispatch audit record: a single transport event traced to
// its terminal outcome. Declined and ignored dispatches are recorded
// too — the trail answers "what did this tag do" for every scan, not
// just executed ones.
type Entry struct {
	ID             string    `json:"id"`
	DispatchID     string    `json:"dispatch_id"`
	Kind           string    `json:"kind"`
	AutomationID   string    `json:"automation_id,omitempty"`
	FinalState     string    `json:"final_state"`
	Executor       string    `json:"executor,omitempty"` // engine | fallback
	Success        bool      `json:"success"`
	StepsCompleted int       `json:"steps_completed"`
	TotalSteps     int       `json:"total_steps"`
	DurationMS     int64     `json:"duration_ms"`
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Repository persists the dispatch audit trail.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	ListByAutomation(ctx context.Context, automationID string, limit int) ([]Entry, error)
}

const defaultListLimit = 100

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one audit entry. The entry id is assigned when empty.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = automation.GenerateID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO dispatch_audit (
			id, dispatch_id, kind, automation_id, final_state, executor,
			success, steps_completed, total_steps, duration_ms, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.DispatchID, e.Kind, e.AutomationID, e.FinalState, e.Executor,
		e.Success, e.StepsCompleted, e.TotalSteps, e.DurationMS, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

const auditColumns = `id, dispatch_id, kind, automation_id, final_state, executor,
			success, steps_completed, total_steps, duration_ms, detail, created_at`

// List retrieves the most recent entries, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + auditColumns + ` FROM dispatch_audit ORDER BY created_at DESC, rowid DESC LIMIT ?`
	return r.queryEntries(ctx, query, limit)
}

// ListByAutomation retrieves recent entries for one automation.
func (r *SQLiteRepository) ListByAutomation(ctx context.Context, automationID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + auditColumns + ` FROM dispatch_audit
		WHERE automation_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`
	return r.queryEntries(ctx, query, automationID, limit)
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iteration

	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.ID, &e.DispatchID, &e.Kind, &e.AutomationID, &e.FinalState, &e.Executor,
			&e.Success, &e.StepsCompleted, &e.TotalSteps, &e.DurationMS, &e.Detail, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}
