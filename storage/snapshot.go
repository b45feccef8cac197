package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/models"
	_ "github.com/mattn/go-sqlite3"
)

// SnapshotStore keeps the last good scrape in a local sqlite file so a run
// where every source fails can still serve recent data.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SnapshotStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot_listings (
		source_url TEXT PRIMARY KEY,
		data JSON NOT NULL,
		saved_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);`

	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the whole snapshot atomically. A partially written snapshot
// is worse than a stale one.
func (s *SnapshotStore) Save(ctx context.Context, listings []models.RawListing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_listings`); err != nil {
		return err
	}

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO snapshot_listings (source_url, data, saved_at) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range listings {
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", l.SourceURL, err)
		}
		if _, err := stmt.ExecContext(ctx, l.SourceURL, data, now); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO snapshot_meta (key, value) VALUES ('taken_at', ?)`, now.Format(time.RFC3339)); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SnapshotStore) Load(ctx context.Context) ([]models.RawListing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM snapshot_listings ORDER BY source_url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.RawListing
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var l models.RawListing
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// TakenAt reports when the current snapshot was written, zero when none
// exists yet.
func (s *SnapshotStore) TakenAt(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = 'taken_at'`).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}
