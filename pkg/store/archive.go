// Package store persists receipts for intents that reached a terminal
// state, so an account's history survives the process. Receipts are
// hash-chained per account; Verify rebuilds the chain.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/covenant-labs/covenant/pkg/canonicalize"
)

// ErrReceiptNotFound is returned when no receipt matches a lookup.
var ErrReceiptNotFound = errors.New("receipt not found")

// Status is the terminal state a receipt records.
type Status string

const (
	StatusExecuted Status = "EXECUTED"
	StatusExpired  Status = "EXPIRED"
)

// Receipt is the archived record of one terminal intent.
type Receipt struct {
	ReceiptID   string    `json:"receipt_id"`
	AccountAddr string    `json:"account_addr"`
	IntentKey   string    `json:"intent_key"`
	Role        string    `json:"role"`
	Status      Status    `json:"status"`
	ActionCount int       `json:"action_count"`
	RecordedAt  time.Time `json:"recorded_at"`
	ContentHash string    `json:"content_hash"`
	PrevHash    string    `json:"prev_hash"`
}

// NewReceipt builds a sealed receipt chained onto prevHash.
func NewReceipt(accountAddr, intentKey, role string, status Status, actionCount int, recordedAt time.Time, prevHash string) (*Receipt, error) {
	if prevHash == "" {
		prevHash = "genesis"
	}
	r := &Receipt{
		ReceiptID:   uuid.NewString(),
		AccountAddr: accountAddr,
		IntentKey:   intentKey,
		Role:        role,
		Status:      status,
		ActionCount: actionCount,
		RecordedAt:  recordedAt.UTC(),
		PrevHash:    prevHash,
	}
	hash, err := canonicalize.CanonicalHash(r.hashInput())
	if err != nil {
		return nil, err
	}
	r.ContentHash = hash
	return r, nil
}

type receiptHashInput struct {
	ReceiptID   string `json:"receipt_id"`
	AccountAddr string `json:"account_addr"`
	IntentKey   string `json:"intent_key"`
	Role        string `json:"role"`
	Status      Status `json:"status"`
	ActionCount int    `json:"action_count"`
	PrevHash    string `json:"prev"`
}

func (r *Receipt) hashInput() receiptHashInput {
	return receiptHashInput{
		ReceiptID:   r.ReceiptID,
		AccountAddr: r.AccountAddr,
		IntentKey:   r.IntentKey,
		Role:        r.Role,
		Status:      r.Status,
		ActionCount: r.ActionCount,
		PrevHash:    r.PrevHash,
	}
}

// Archive persists receipts.
type Archive interface {
	// Store appends a receipt.
	Store(ctx context.Context, r *Receipt) error
	// Get returns the receipt with the given id.
	Get(ctx context.Context, receiptID string) (*Receipt, error)
	// ListByAccount returns an account's receipts in recording order.
	ListByAccount(ctx context.Context, accountAddr string, limit int) ([]*Receipt, error)
	// Head returns the last content hash recorded for an account, or
	// "genesis" when the account has no receipts yet.
	Head(ctx context.Context, accountAddr string) (string, error)
}

// Record archives a terminal intent, chaining onto the account's current
// head hash.
func Record(ctx context.Context, archive Archive, accountAddr, intentKey, role string, status Status, actionCount int, now time.Time) (*Receipt, error) {
	head, err := archive.Head(ctx, accountAddr)
	if err != nil {
		return nil, err
	}
	r, err := NewReceipt(accountAddr, intentKey, role, status, actionCount, now, head)
	if err != nil {
		return nil, err
	}
	if err := archive.Store(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Verify walks an account's receipts and checks the hash chain.
func Verify(ctx context.Context, archive Archive, accountAddr string) error {
	receipts, err := archive.ListByAccount(ctx, accountAddr, 0)
	if err != nil {
		return err
	}
	prev := "genesis"
	for i, r := range receipts {
		if r.PrevHash != prev {
			return fmt.Errorf("chain broken at receipt %d (%s): expected prev %s, got %s", i+1, r.ReceiptID, prev, r.PrevHash)
		}
		computed, err := canonicalize.CanonicalHash(r.hashInput())
		if err != nil {
			return err
		}
		if computed != r.ContentHash {
			return fmt.Errorf("hash mismatch at receipt %d (%s)", i+1, r.ReceiptID)
		}
		prev = r.ContentHash
	}
	return nil
}
