package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryEntry is one logged ranking request.
type HistoryEntry struct {
	RequestID  string        `json:"request_id"`
	Kind       string        `json:"kind"` // "seeds", "filter", or "seeds+filter"
	Summary    string        `json:"summary"`
	Candidates int           `json:"candidates"`
	Duration   time.Duration `json:"duration"`
	OK         bool          `json:"ok"`
	CreatedAt  string        `json:"created_at"`
}

var (
	historyDB   *sql.DB
	historyOnce sync.Once
	historyErr  error
	historyPath string
)

// SetHistoryPath overrides the history DB location. Call before first use.
func SetHistoryPath(path string) { historyPath = path }

// openHistoryDB opens (or creates) the SQLite request-history database.
func openHistoryDB() (*sql.DB, error) {
	historyOnce.Do(func() {
		path := historyPath
		if path == "" {
			dir := filepath.Join(os.Getenv("HOME"), ".peerscout")
			if err := os.MkdirAll(dir, 0750); err != nil {
				historyErr = fmt.Errorf("history: mkdir %s: %w", dir, err)
				return
			}
			path = filepath.Join(dir, "history.db")
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			historyErr = fmt.Errorf("history: open db: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // SQLite: single writer
		if err := initHistorySchema(db); err != nil {
			historyErr = fmt.Errorf("history: init schema: %w", err)
			return
		}
		historyDB = db
	})
	return historyDB, historyErr
}

func initHistorySchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS requests (
		request_id  TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		summary     TEXT,
		candidates  INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		ok          INTEGER NOT NULL DEFAULT 1,
		created_at  TEXT NOT NULL
	)`)
	return err
}

// RecordRequest logs one ranking request. Best effort: a logging failure
// never fails the request itself.
func RecordRequest(_ context.Context, e HistoryEntry) error {
	db, err := openHistoryDB()
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.Exec(
		`INSERT OR REPLACE INTO requests (request_id, kind, summary, candidates, duration_ms, ok, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Kind, e.Summary, e.Candidates, e.Duration.Milliseconds(), boolToInt(e.OK), now,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// ListRequests returns the most recent ranking requests, optionally filtered
// by kind.
func ListRequests(_ context.Context, kind string, limit int) ([]HistoryEntry, error) {
	db, err := openHistoryDB()
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var rows *sql.Rows
	if kind != "" {
		rows, err = db.Query(
			`SELECT request_id, kind, summary, candidates, duration_ms, ok, created_at
			 FROM requests WHERE kind = ? ORDER BY created_at DESC LIMIT ?`, kind, limit)
	} else {
		rows, err = db.Query(
			`SELECT request_id, kind, summary, candidates, duration_ms, ok, created_at
			 FROM requests ORDER BY created_at DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var durationMs int64
		var ok int
		var summary sql.NullString
		if err := rows.Scan(&e.RequestID, &e.Kind, &summary, &e.Candidates, &durationMs, &ok, &e.CreatedAt); err != nil {
			continue
		}
		e.Summary = summary.String
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.OK = ok != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
