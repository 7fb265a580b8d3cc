package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/warp/crew-engine/domain"
)

// Journal is a domain.SyncJournal in its own SQLite file, kept next to the
// main database so pending shifts survive a restart even when the main
// store is what failed.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

var _ domain.SyncJournal = (*Journal)(nil)

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS pending_syncs (
		shift_id TEXT PRIMARY KEY,
		shift_start TEXT NOT NULL,
		shift_json TEXT NOT NULL,
		entry_json TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		last_error TEXT NOT NULL DEFAULT '',
		last_try TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) SavePending(ctx context.Context, p domain.PendingSync) error {
	shiftJSON, err := json.Marshal(p.Shift)
	if err != nil {
		return fmt.Errorf("failed to encode pending shift: %w", err)
	}
	entryJSON, err := json.Marshal(p.Entry)
	if err != nil {
		return fmt.Errorf("failed to encode pending entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	query := `
		INSERT INTO pending_syncs (shift_id, shift_start, shift_json, entry_json, attempts, last_error, last_try)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shift_id) DO UPDATE SET
			shift_json = excluded.shift_json,
			entry_json = excluded.entry_json,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			last_try = excluded.last_try
	`
	_, err = j.db.ExecContext(ctx, query,
		p.Shift.ID, formatTime(p.Shift.Start), string(shiftJSON), string(entryJSON),
		p.Attempts, p.LastError, formatTime(p.LastTry))
	if err != nil {
		return fmt.Errorf("failed to save pending shift: %w", err)
	}
	return nil
}

func (j *Journal) DeletePending(ctx context.Context, id domain.ShiftID) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.db.ExecContext(ctx, "DELETE FROM pending_syncs WHERE shift_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete pending shift: %w", err)
	}
	return nil
}

func (j *Journal) ListPending(ctx context.Context) ([]domain.PendingSync, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx, `
		SELECT shift_json, entry_json, attempts, last_error, last_try
		FROM pending_syncs ORDER BY shift_start ASC, shift_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending shifts: %w", err)
	}
	defer rows.Close()

	var items []domain.PendingSync
	for rows.Next() {
		var (
			p                    domain.PendingSync
			shiftJSON, entryJSON string
			lastTry              string
		)
		if err := rows.Scan(&shiftJSON, &entryJSON, &p.Attempts, &p.LastError, &lastTry); err != nil {
			return nil, fmt.Errorf("failed to scan pending shift: %w", err)
		}
		if err := json.Unmarshal([]byte(shiftJSON), &p.Shift); err != nil {
			return nil, fmt.Errorf("failed to decode pending shift: %w", err)
		}
		if err := json.Unmarshal([]byte(entryJSON), &p.Entry); err != nil {
			return nil, fmt.Errorf("failed to decode pending entry: %w", err)
		}
		p.LastTry = parseTime(lastTry)
		items = append(items, p)
	}
	return items, rows.Err()
}

func (j *Journal) ClearPending(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.db.ExecContext(ctx, "DELETE FROM pending_syncs"); err != nil {
		return fmt.Errorf("failed to clear pending shifts: %w", err)
	}
	return nil
}
