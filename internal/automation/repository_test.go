package automation

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// ─── Test Setup ─────────────────────────────────────────────────────────────

// setupTestDB creates an in-memory SQLite database with the automations
// schema. The id column carries a non-unique index, matching the real
// migration: duplicate ids must be storable so ambiguity surfaces at
// resolve time.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE automations (
			id          TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			steps       TEXT NOT NULL DEFAULT '[]',
			visibility  TEXT NOT NULL DEFAULT 'private',
			category    TEXT NOT NULL DEFAULT 'daily',
			tags        TEXT NOT NULL DEFAULT '[]',
			owner       TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		);
		CREATE INDEX idx_automations_id ON automations(id);
		CREATE INDEX idx_automations_owner ON automations(owner);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}
	return db
}

// storedAutomation builds a persisted automation and returns it.
func storedAutomation(t *testing.T, repo *SQLiteRepository, id, title string) *AutomationSummary {
	t.Helper()

	a := testAutomation()
	a.ID = id
	a.Title = title
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("creating automation %q: %v", id, err)
	}
	return a
}

const (
	testID      = "3fae1f6a-9c1b-4f7e-8a2d-5b6c7d8e9f0a"
	otherTestID = "7b2c3d4e-5f60-4182-93a4-b5c6d7e8f901"
)

// ─── CRUD ───────────────────────────────────────────────────────────────────

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	created := storedAutomation(t, repo, testID, "Morning Routine")

	got, err := repo.GetByID(ctx, testID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Morning Routine" {
		t.Errorf("Title = %q, want %q", got.Title, "Morning Routine")
	}
	if len(got.Steps) != len(created.Steps) {
		t.Errorf("Steps count = %d, want %d", len(got.Steps), len(created.Steps))
	}
	if got.Steps[0].Kind != KindNotification {
		t.Errorf("Steps[0].Kind = %q, want %q", got.Steps[0].Kind, KindNotification)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not persisted")
	}
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	storedAutomation(t, repo, testID, "First")

	dup := testAutomation()
	dup.ID = testID
	if err := repo.Create(context.Background(), dup); !errors.Is(err, ErrExists) {
		t.Errorf("Create duplicate = %v, want ErrExists", err)
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	if _, err := repo.GetByID(context.Background(), testID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID missing = %v, want ErrNotFound", err)
	}
}

func TestRepositoryUpdate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := storedAutomation(t, repo, testID, "Before")
	a.Title = "After"
	a.Steps = []Step{{Kind: KindSMS, Config: map[string]any{"to": "+1555"}, Enabled: true}}

	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID(ctx, testID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got.Title != "After" {
		t.Errorf("Title = %q, want %q", got.Title, "After")
	}
	if len(got.Steps) != 1 || got.Steps[0].Kind != KindSMS {
		t.Errorf("Steps not updated: %v", got.Steps)
	}
}

func TestRepositoryUpdateMissing(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	a := testAutomation()
	if err := repo.Update(context.Background(), a); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update missing = %v, want ErrNotFound", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	storedAutomation(t, repo, testID, "Doomed")

	if err := repo.Delete(ctx, testID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, testID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, testID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete again = %v, want ErrNotFound", err)
	}
}

// ─── Listing ────────────────────────────────────────────────────────────────

func TestRepositoryList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	storedAutomation(t, repo, testID, "Zulu")
	storedAutomation(t, repo, otherTestID, "Alpha")

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List returned %d, want 2", len(all))
	}
	if all[0].Title != "Alpha" || all[1].Title != "Zulu" {
		t.Errorf("List not ordered by title: %q, %q", all[0].Title, all[1].Title)
	}
}

func TestRepositoryListByCategory(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := testAutomation()
	a.ID = testID
	a.Category = CategoryEmergency
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	storedAutomation(t, repo, otherTestID, "Daily One")

	emergency, err := repo.ListByCategory(ctx, CategoryEmergency)
	if err != nil {
		t.Fatalf("ListByCategory: %v", err)
	}
	if len(emergency) != 1 || emergency[0].ID != testID {
		t.Errorf("ListByCategory(emergency) = %v, want the single emergency automation", emergency)
	}
}

// ─── Duplicate IDs ──────────────────────────────────────────────────────────

// insertDuplicate bypasses Create's existence check to simulate the
// store-consistency violation sync flows can produce.
func insertDuplicate(t *testing.T, db *sql.DB, id, title string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO automations (id, title, steps, visibility, category, tags, owner, created_at, updated_at)
		VALUES (?, ?, '[]', 'private', 'daily', '[]', '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		id, title,
	)
	if err != nil {
		t.Fatalf("inserting duplicate row: %v", err)
	}
}

func TestRepositoryFindByIDDuplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	insertDuplicate(t, db, testID, "First Copy")
	insertDuplicate(t, db, testID, "Second Copy")

	matches, err := repo.FindByID(context.Background(), testID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("FindByID returned %d rows, want 2", len(matches))
	}
	// rowid order means insertion order: the oldest record comes first.
	if matches[0].Title != "First Copy" {
		t.Errorf("first match = %q, want the oldest record", matches[0].Title)
	}
}

// ─── Error Classification ───────────────────────────────────────────────────

func TestIsTransient(t *testing.T) {
	if !isTransient(context.DeadlineExceeded) {
		t.Error("context.DeadlineExceeded should be transient")
	}
	if isTransient(errors.New("disk I/O error")) {
		t.Error("arbitrary errors should not be transient")
	}
	if isTransient(nil) {
		t.Error("nil should not be transient")
	}
}
