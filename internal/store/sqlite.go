package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Ensure both stores implement model.DeliveryLog.
var (
	_ model.DeliveryLog = (*SQLiteStore)(nil)
	_ model.DeliveryLog = (*NopStore)(nil)
)

// SQLiteStore keeps a history of delivery attempts in a SQLite database.
// It is an audit trail only; deduplication is the ledger's job.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// deliveries table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS deliveries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		mode        TEXT NOT NULL,
		key         TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL,
		delivered   INTEGER NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		at          DATETIME NOT NULL
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating deliveries table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record appends one delivery attempt.
func (s *SQLiteStore) Record(rec model.DeliveryRecord) error {
	_, err := s.db.Exec(
		"INSERT INTO deliveries (mode, key, destination, delivered, error, at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.Mode, string(rec.Key), rec.Destination, rec.Delivered, rec.Error, rec.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording delivery to %s: %w", rec.Destination, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStore) Recent(limit int) ([]model.DeliveryRecord, error) {
	rows, err := s.db.Query(
		"SELECT mode, key, destination, delivered, error, at FROM deliveries ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var out []model.DeliveryRecord
	for rows.Next() {
		var (
			rec model.DeliveryRecord
			key string
			at  time.Time
		)
		if err := rows.Scan(&rec.Mode, &key, &rec.Destination, &rec.Delivered, &rec.Error, &at); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		rec.Key = model.IdentityKey(key)
		rec.At = at
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Cleanup deletes history entries older than the given duration.
func (s *SQLiteStore) Cleanup(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UTC()
	_, err := s.db.Exec("DELETE FROM deliveries WHERE at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("cleaning up deliveries older than %v: %w", olderThan, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
