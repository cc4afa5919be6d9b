package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/features"
	"github.com/RyanBlaney/sonido-voice/series"
)

// SQLite stores flattened records, one row per feature column. Undefined
// measurements are stored as NULL.
type SQLite struct {
	db *sql.DB
}

// StoredRecord is a record read back from the sink.
type StoredRecord struct {
	ID       int64
	RunID    string
	Source   string
	Label    string
	Interval audio.Interval
	Features map[string]series.Measurement
}

// OpenSQLite opens the database at dsn and creates the tables.
func OpenSQLite(dsn string) (*SQLite, error) {
	path := dsn
	if idx := strings.Index(dsn, "?"); idx != -1 {
		path = dsn[:idx]
	}
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	if !strings.Contains(dsn, "_busy_timeout") {
		if strings.Contains(dsn, "?") {
			dsn += "&_busy_timeout=5000"
		} else {
			dsn += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}
	// a second connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	return &SQLite{db: db}, nil
}

func createTables(db *sql.DB) error {
	const schema = `
    CREATE TABLE IF NOT EXISTS records (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        source TEXT NOT NULL,
        label TEXT NOT NULL DEFAULT '',
        start_s REAL NOT NULL,
        end_s REAL NOT NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);

    CREATE TABLE IF NOT EXISTS features (
        record_id INTEGER NOT NULL REFERENCES records(id),
        name TEXT NOT NULL,
        value REAL,
        PRIMARY KEY (record_id, name)
    );
    `
	_, err := db.Exec(schema)
	return err
}

// Save writes rec under runID and returns its row id.
func (s *SQLite) Save(ctx context.Context, runID string, rec *features.Record) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO records (run_id, source, label, start_s, end_s) VALUES (?, ?, ?, ?, ?)`,
		runID, rec.Source, rec.Label, rec.Interval.Start, rec.Interval.End)
	if err != nil {
		return 0, fmt.Errorf("error inserting record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO features (record_id, name, value) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for name, m := range rec.Flatten() {
		var value sql.NullFloat64
		if m.Defined {
			value = sql.NullFloat64{Float64: m.Value, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, name, value); err != nil {
			return 0, fmt.Errorf("error inserting feature %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Records returns every record of runID in insertion order.
func (s *SQLite) Records(ctx context.Context, runID string) ([]StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, label, start_s, end_s FROM records WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	var out []StoredRecord
	for rows.Next() {
		r := StoredRecord{RunID: runID, Features: map[string]series.Measurement{}}
		if err := rows.Scan(&r.ID, &r.Source, &r.Label, &r.Interval.Start, &r.Interval.End); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := s.loadFeatures(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLite) loadFeatures(ctx context.Context, r *StoredRecord) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM features WHERE record_id = ?`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var value sql.NullFloat64
		if err := rows.Scan(&name, &value); err != nil {
			return err
		}
		if value.Valid {
			r.Features[name] = series.Of(value.Float64)
		} else {
			r.Features[name] = series.Undefined
		}
	}
	return rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
