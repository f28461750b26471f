package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/fleetline/agvctl/emit"
)

// SQLiteStore is a local single-file diagnostic log, for development and
// single-vehicle deployments with no fleet-wide aggregation database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed audit log
// at path. Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("audit: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			task_id TEXT NOT NULL,
			msg TEXT NOT NULL,
			meta TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_order ON audit_events(order_id, id)`,
		`CREATE TABLE IF NOT EXISTS audit_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_errors_order ON audit_errors(order_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit: create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, e emit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("audit: marshal meta: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (order_id, step, task_id, msg, meta) VALUES (?, ?, ?, ?, ?)`,
		e.OrderID, e.Step, e.TaskID, e.Msg, string(meta))
	return err
}

func (s *SQLiteStore) AppendError(ctx context.Context, r ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_errors (order_id, task_id, message, created_at) VALUES (?, ?, ?, ?)`,
		r.OrderID, r.TaskID, r.Message, r.Timestamp)
	return err
}

func (s *SQLiteStore) EventsForOrder(ctx context.Context, orderID string, limit int) ([]emit.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, task_id, msg, meta FROM audit_events WHERE order_id = ? ORDER BY id ASC LIMIT ?`,
		orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []emit.Event
	for rows.Next() {
		var e emit.Event
		var metaJSON string
		if err := rows.Scan(&e.Step, &e.TaskID, &e.Msg, &metaJSON); err != nil {
			return nil, err
		}
		e.OrderID = orderID
		if metaJSON != "" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &e.Meta); err != nil {
				return nil, fmt.Errorf("audit: unmarshal meta: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) ErrorsForOrder(ctx context.Context, orderID string, limit int) ([]ErrorRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, message, created_at FROM audit_errors WHERE order_id = ? ORDER BY id ASC LIMIT ?`,
		orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ErrorRecord
	for rows.Next() {
		r := ErrorRecord{OrderID: orderID}
		if err := rows.Scan(&r.TaskID, &r.Message, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
