package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryArchive is a thread-safe in-memory Archive for tests and demos.
type MemoryArchive struct {
	mu       sync.RWMutex
	receipts []*Receipt
}

// NewMemoryArchive creates an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{}
}

func (m *MemoryArchive) Store(ctx context.Context, r *Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.receipts = append(m.receipts, &cp)
	return nil
}

func (m *MemoryArchive) Get(ctx context.Context, receiptID string) (*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.receipts {
		if r.ReceiptID == receiptID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
}

func (m *MemoryArchive) ListByAccount(ctx context.Context, accountAddr string, limit int) ([]*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Receipt
	for _, r := range m.receipts {
		if r.AccountAddr == accountAddr {
			cp := *r
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryArchive) Head(ctx context.Context, accountAddr string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	head := "genesis"
	for _, r := range m.receipts {
		if r.AccountAddr == accountAddr {
			head = r.ContentHash
		}
	}
	return head, nil
}
