package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteArchive persists receipts in a SQLite database.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive wraps db and runs the schema migration.
func NewSQLiteArchive(db *sql.DB) (*SQLiteArchive, error) {
	s := &SQLiteArchive{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteArchive opens (or creates) the database at path.
func OpenSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite archive: %w", err)
	}
	return NewSQLiteArchive(db)
}

func (s *SQLiteArchive) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS receipts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		receipt_id TEXT NOT NULL UNIQUE,
		account_addr TEXT NOT NULL,
		intent_key TEXT NOT NULL,
		role TEXT,
		status TEXT NOT NULL,
		action_count INTEGER NOT NULL DEFAULT 0,
		recorded_at DATETIME NOT NULL,
		content_hash TEXT NOT NULL,
		prev_hash TEXT NOT NULL DEFAULT 'genesis'
	);
	CREATE INDEX IF NOT EXISTS idx_receipts_account ON receipts(account_addr, seq);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteArchive) Store(ctx context.Context, r *Receipt) error {
	query := `INSERT INTO receipts (
		receipt_id, account_addr, intent_key, role, status, action_count, recorded_at, content_hash, prev_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		r.ReceiptID, r.AccountAddr, r.IntentKey, r.Role, string(r.Status), r.ActionCount,
		r.RecordedAt.UTC().Format(time.RFC3339Nano), r.ContentHash, r.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *SQLiteArchive) Get(ctx context.Context, receiptID string) (*Receipt, error) {
	query := `SELECT receipt_id, account_addr, intent_key, role, status, action_count, recorded_at, content_hash, prev_hash
		FROM receipts WHERE receipt_id = ?`
	return scanReceipt(s.db.QueryRowContext(ctx, query, receiptID))
}

func (s *SQLiteArchive) ListByAccount(ctx context.Context, accountAddr string, limit int) ([]*Receipt, error) {
	query := `SELECT receipt_id, account_addr, intent_key, role, status, action_count, recorded_at, content_hash, prev_hash
		FROM receipts WHERE account_addr = ? ORDER BY seq`
	args := []any{accountAddr}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var receipts []*Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (s *SQLiteArchive) Head(ctx context.Context, accountAddr string) (string, error) {
	query := `SELECT content_hash FROM receipts WHERE account_addr = ? ORDER BY seq DESC LIMIT 1`
	var head string
	err := s.db.QueryRowContext(ctx, query, accountAddr).Scan(&head)
	if errors.Is(err, sql.ErrNoRows) {
		return "genesis", nil
	}
	if err != nil {
		return "", err
	}
	return head, nil
}

// Close closes the underlying database.
func (s *SQLiteArchive) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*Receipt, error) {
	var r Receipt
	var status, recordedAt string
	err := row.Scan(&r.ReceiptID, &r.AccountAddr, &r.IntentKey, &r.Role, &status, &r.ActionCount, &recordedAt, &r.ContentHash, &r.PrevHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	ts, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
	}
	r.RecordedAt = ts
	return &r, nil
}
