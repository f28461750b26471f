package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/fleetline/agvctl/emit"
)

// MySQLStore is the same diagnostic log as SQLiteStore, for a vehicle that
// streams its audit trail to a fleet-wide aggregation database rather than
// keeping it local.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a MySQL/MariaDB-backed audit log. dsn follows
// go-sql-driver/mysql's format, e.g.
// "user:pass@tcp(localhost:3306)/vehicle_audit?parseTime=true".
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			task_id VARCHAR(255) NOT NULL,
			msg VARCHAR(255) NOT NULL,
			meta JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_audit_events_order (order_id, id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS audit_errors (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id VARCHAR(255) NOT NULL,
			task_id VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			INDEX idx_audit_errors_order (order_id, id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit: create schema: %w", err)
		}
	}
	return nil
}

func (s *MySQLStore) AppendEvent(ctx context.Context, e emit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("audit: marshal meta: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (order_id, step, task_id, msg, meta) VALUES (?, ?, ?, ?, ?)`,
		e.OrderID, e.Step, e.TaskID, e.Msg, meta)
	return err
}

func (s *MySQLStore) AppendError(ctx context.Context, r ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_errors (order_id, task_id, message, created_at) VALUES (?, ?, ?, ?)`,
		r.OrderID, r.TaskID, r.Message, r.Timestamp)
	return err
}

func (s *MySQLStore) EventsForOrder(ctx context.Context, orderID string, limit int) ([]emit.Event, error) {
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
		var metaJSON []byte
		if err := rows.Scan(&e.Step, &e.TaskID, &e.Msg, &metaJSON); err != nil {
			return nil, err
		}
		e.OrderID = orderID
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Meta); err != nil {
				return nil, fmt.Errorf("audit: unmarshal meta: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *MySQLStore) ErrorsForOrder(ctx context.Context, orderID string, limit int) ([]ErrorRecord, error) {
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

func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ Store = (*MySQLStore)(nil)
