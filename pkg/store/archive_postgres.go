package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresArchive persists receipts in Postgres, for deployments that share
// one archive across several processes.
type PostgresArchive struct {
	db *sql.DB
}

// NewPostgresArchive wraps db and runs the schema migration.
func NewPostgresArchive(db *sql.DB) (*PostgresArchive, error) {
	s := &PostgresArchive{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenPostgresArchive connects using a DSN such as
// postgres://user@localhost:5432/covenant?sslmode=disable.
func OpenPostgresArchive(dsn string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres archive: %w", err)
	}
	return NewPostgresArchive(db)
}

func (s *PostgresArchive) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS receipts (
		seq BIGSERIAL PRIMARY KEY,
		receipt_id TEXT NOT NULL UNIQUE,
		account_addr TEXT NOT NULL,
		intent_key TEXT NOT NULL,
		role TEXT,
		status TEXT NOT NULL,
		action_count INTEGER NOT NULL DEFAULT 0,
		recorded_at TIMESTAMPTZ NOT NULL,
		content_hash TEXT NOT NULL,
		prev_hash TEXT NOT NULL DEFAULT 'genesis'
	);
	CREATE INDEX IF NOT EXISTS idx_receipts_account ON receipts(account_addr, seq);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresArchive) Store(ctx context.Context, r *Receipt) error {
	query := `INSERT INTO receipts (
		receipt_id, account_addr, intent_key, role, status, action_count, recorded_at, content_hash, prev_hash
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query,
		r.ReceiptID, r.AccountAddr, r.IntentKey, r.Role, string(r.Status), r.ActionCount,
		r.RecordedAt.UTC(), r.ContentHash, r.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *PostgresArchive) Get(ctx context.Context, receiptID string) (*Receipt, error) {
	query := `SELECT receipt_id, account_addr, intent_key, role, status, action_count, recorded_at, content_hash, prev_hash
		FROM receipts WHERE receipt_id = $1`
	var r Receipt
	var status string
	err := s.db.QueryRowContext(ctx, query, receiptID).Scan(
		&r.ReceiptID, &r.AccountAddr, &r.IntentKey, &r.Role, &status, &r.ActionCount, &r.RecordedAt, &r.ContentHash, &r.PrevHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	return &r, nil
}

func (s *PostgresArchive) ListByAccount(ctx context.Context, accountAddr string, limit int) ([]*Receipt, error) {
	query := `SELECT receipt_id, account_addr, intent_key, role, status, action_count, recorded_at, content_hash, prev_hash
		FROM receipts WHERE account_addr = $1 ORDER BY seq`
	args := []any{accountAddr}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var receipts []*Receipt
	for rows.Next() {
		var r Receipt
		var status string
		if err := rows.Scan(&r.ReceiptID, &r.AccountAddr, &r.IntentKey, &r.Role, &status, &r.ActionCount, &r.RecordedAt, &r.ContentHash, &r.PrevHash); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		receipts = append(receipts, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (s *PostgresArchive) Head(ctx context.Context, accountAddr string) (string, error) {
	query := `SELECT content_hash FROM receipts WHERE account_addr = $1 ORDER BY seq DESC LIMIT 1`
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
func (s *PostgresArchive) Close() error { return s.db.Close() }
