package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/josephgoksu/PlanWing/internal/policy"
)

// DatabaseFile is the file name of the local store inside the memory directory.
const DatabaseFile = "planner.db"

// SQLiteStore implements Store using SQLite for persistence.
type SQLiteStore struct {
	db       *sql.DB
	basePath string // Path to the memory directory, or ":memory:"
}

// NewSQLiteStore opens (and creates if needed) the local store.
func NewSQLiteStore(basePath string) (*SQLiteStore, error) {
	var dbPath string
	if basePath == ":memory:" {
		dbPath = ":memory:"
	} else {
		dbPath = filepath.Join(basePath, DatabaseFile)

		// Ensure directory exists
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("create memory directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		basePath: basePath,
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Provenance of tasks created by carry-over
	CREATE TABLE IF NOT EXISTS carryover_origins (
		task_id INTEGER PRIMARY KEY,
		source_week_id INTEGER NOT NULL,
		source_week_start TEXT NOT NULL,    -- YYYY-MM-DD
		target_week_start TEXT NOT NULL,    -- YYYY-MM-DD
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_carryover_source ON carryover_origins(source_week_id);

	-- Last synced task list per container, for offline board rendering
	CREATE TABLE IF NOT EXISTS board_snapshots (
		project_id INTEGER NOT NULL,
		sprint_id INTEGER NOT NULL,
		container TEXT NOT NULL,            -- "backlog" or "week:<id>"
		tasks_json TEXT NOT NULL,
		synced_at TEXT NOT NULL,
		PRIMARY KEY (project_id, sprint_id, container)
	);

	-- Sprint header and week list of the last sync
	CREATE TABLE IF NOT EXISTS sprint_snapshots (
		project_id INTEGER NOT NULL,
		sprint_id INTEGER NOT NULL,
		sprint_json TEXT NOT NULL,
		weeks_json TEXT NOT NULL,
		metadata_json TEXT NOT NULL,
		synced_at TEXT NOT NULL,
		PRIMARY KEY (project_id, sprint_id)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	if _, err := s.db.Exec(policy.AuditSchema); err != nil {
		return fmt.Errorf("policy audit schema: %w", err)
	}
	return ensureColumn(s.db, "policy_decisions", "week_id", "INTEGER")
}

// DB returns the underlying handle, shared with the policy audit store.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	if s.basePath == ":memory:" {
		return s.basePath
	}
	return filepath.Join(s.basePath, DatabaseFile)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
