package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS outreach (
		target_id TEXT PRIMARY KEY NOT NULL,
		contacted_at INTEGER,
		payload TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_outreach_contacted_at ON outreach(contacted_at);
`

// SQLiteStore keeps the ledger in a single SQLite table, one row per target.
type SQLiteStore struct {
	db *sql.DB
}

// Stats summarises the persisted ledger.
type Stats struct {
	Total          int
	WithPayload    int
	ContactedToday int
}

// OpenSQLite opens or creates the database at path and ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; keeps the pragmas below applied to every query.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads every row.
func (s *SQLiteStore) Load(ctx context.Context) (map[string]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT target_id, contacted_at, payload FROM outreach`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	records := make(map[string]Record)
	for rows.Next() {
		var (
			rec         Record
			contactedAt sql.NullInt64
			payload     sql.NullString
		)
		if err := rows.Scan(&rec.TargetID, &contactedAt, &payload); err != nil {
			return nil, fmt.Errorf("%w: failed to scan record: %v", ErrMalformed, err)
		}
		if contactedAt.Valid {
			t := time.Unix(0, contactedAt.Int64).UTC()
			rec.ContactedAt = &t
		}
		rec.Payload = payload.String
		records[rec.TargetID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger rows: %w", err)
	}

	return records, nil
}

// Put upserts rec.
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO outreach (target_id, contacted_at, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(target_id) DO UPDATE SET
			contacted_at = excluded.contacted_at,
			payload = excluded.payload
	`

	var contactedAt sql.NullInt64
	if rec.ContactedAt != nil {
		contactedAt = sql.NullInt64{Int64: rec.ContactedAt.UnixNano(), Valid: true}
	}
	payload := sql.NullString{String: rec.Payload, Valid: rec.Payload != ""}

	if _, err := s.db.ExecContext(ctx, query, rec.TargetID, contactedAt, payload); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// Stats counts rows. "Today" starts at local midnight of now.
func (s *SQLiteStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outreach`).Scan(&st.Total); err != nil {
		return Stats{}, fmt.Errorf("failed to count records: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outreach WHERE payload IS NOT NULL AND payload != ''`,
	).Scan(&st.WithPayload); err != nil {
		return Stats{}, fmt.Errorf("failed to count messages: %w", err)
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outreach WHERE contacted_at >= ?`, midnight.UnixNano(),
	).Scan(&st.ContactedToday); err != nil {
		return Stats{}, fmt.Errorf("failed to get today's count: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
