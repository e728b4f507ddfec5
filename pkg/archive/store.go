// Package archive implements EventArchive, an optional Postgres-backed
// mirror of the event bus: an eventbus subscriber persists every
// EnsembleEvent for long-term analytics and cross-run querying,
// entirely independent of pkg/statestore's operational, bounded-window
// correctness.
package archive

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the archive's Postgres connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sane pool defaults for a local/dev Postgres.
func DefaultConfig() Config {
	return Config{
		Host: "localhost", Port: 5432, User: "coordinator", Password: "coordinator",
		Database: "coordinator_archive", SSLMode: "disable",
		MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour,
	}
}

// Event is the archive's row shape, the Go-side mirror of
// entschema.ArchivedEvent.
type Event struct {
	ID         string
	SessionID  string
	TaskID     string
	EventType  string
	Payload    json.RawMessage
	OccurredAt time.Time
	ArchivedAt time.Time
}

// Store is a thin, hand-written data-access layer over the
// archived_events table. It intentionally talks to Postgres through
// database/sql + pgx directly rather than through a generated ent
// client: the entschema package documents the shape, but generating
// its client requires an `ent generate` step this module does not run.
type Store struct {
	db *stdsql.DB
}

// Open connects to Postgres, applies pending migrations, and returns a
// ready Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}

	if err := migrateUp(cfg.Database, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenFromDB wraps an already-open *sql.DB, skipping connection setup
// but still applying migrations — the path newTestStore uses against a
// testcontainers-provisioned database.
func OpenFromDB(db *stdsql.DB, databaseName string) (*Store, error) {
	if err := migrateUp(databaseName, db); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrateUp(databaseName string, db *stdsql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, databaseName, driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the archive's Postgres connection is reachable, the
// check a /health endpoint runs before reporting itself healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert archives one event, idempotently: re-archiving the same event
// id is a no-op rather than a conflict error, since the subscriber may
// redeliver after a transient failure.
func (s *Store) Insert(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archived_events (event_id, session_id, task_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.ID, ev.SessionID, ev.TaskID, ev.EventType, []byte(ev.Payload), ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("archive: insert %s: %w", ev.ID, err)
	}
	return nil
}

// ListEvents returns every archived event for sessionID, oldest first,
// bounded by limit (0 means unbounded).
func (s *Store) ListEvents(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	query := `SELECT event_id, session_id, task_id, event_type, payload, occurred_at, archived_at
		FROM archived_events WHERE session_id = $1 ORDER BY occurred_at ASC`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: list events for %s: %w", sessionID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// SessionTimeline returns every archived event across the whole
// lifetime of sessionID's tasks, oldest first, regardless of task id —
// the cross-task view a session-level dashboard wants.
func (s *Store) SessionTimeline(ctx context.Context, sessionID string) ([]Event, error) {
	return s.ListEvents(ctx, sessionID, 0)
}

func scanEvents(rows *stdsql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var ev Event
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.TaskID, &ev.EventType, &payload, &ev.OccurredAt, &ev.ArchivedAt); err != nil {
			return nil, fmt.Errorf("archive: scan row: %w", err)
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}
