// Package ledger records the lifecycle of an account's intents in an
// append-only, hash-chained log. Entries are never mutated or deleted;
// Verify recomputes the whole chain.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/covenant-labs/covenant/pkg/canonicalize"
)

// EventType categorizes a lifecycle entry.
type EventType string

const (
	EventIntentCreated   EventType = "INTENT_CREATED"
	EventIntentStaged    EventType = "INTENT_STAGED"
	EventIntentExecuted  EventType = "INTENT_EXECUTED"
	EventIntentConfirmed EventType = "INTENT_CONFIRMED"
	EventIntentDestroyed EventType = "INTENT_DESTROYED"
	EventIntentExpired   EventType = "INTENT_EXPIRED"
	EventObjectLocked    EventType = "OBJECT_LOCKED"
	EventObjectUnlocked  EventType = "OBJECT_UNLOCKED"
	EventConfigChanged   EventType = "CONFIG_CHANGED"
	EventDepsChanged     EventType = "DEPS_CHANGED"
)

// Entry is an immutable, hash-chained ledger entry.
type Entry struct {
	Sequence    uint64         `json:"sequence"`
	Event       EventType      `json:"event"`
	IntentKey   string         `json:"intent_key,omitempty"`
	Role        string         `json:"role,omitempty"`
	ContentHash string         `json:"content_hash"`
	PrevHash    string         `json:"prev_hash"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
}

// Ledger is an append-only, hash-chained log bound to one account.
type Ledger struct {
	mu          sync.RWMutex
	accountAddr string
	entries     []Entry
	headHash    string
	clock       func() time.Time
}

// New creates an empty ledger for an account.
func New(accountAddr string) *Ledger {
	return &Ledger{
		accountAddr: accountAddr,
		headHash:    "genesis",
		clock:       time.Now,
	}
}

// WithClock overrides the clock for testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

type hashInput struct {
	Account   string         `json:"account"`
	Sequence  uint64         `json:"sequence"`
	Event     EventType      `json:"event"`
	IntentKey string         `json:"intent_key,omitempty"`
	Role      string         `json:"role,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	PrevHash  string         `json:"prev"`
}

// Append adds an entry and returns its sequence number.
func (l *Ledger) Append(event EventType, intentKey, role string, data map[string]any) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := uint64(len(l.entries)) + 1
	contentHash, err := canonicalize.CanonicalHash(hashInput{
		Account:   l.accountAddr,
		Sequence:  seq,
		Event:     event,
		IntentKey: intentKey,
		Role:      role,
		Data:      data,
		PrevHash:  l.headHash,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to hash ledger entry: %w", err)
	}

	l.entries = append(l.entries, Entry{
		Sequence:    seq,
		Event:       event,
		IntentKey:   intentKey,
		Role:        role,
		ContentHash: contentHash,
		PrevHash:    l.headHash,
		Timestamp:   l.clock(),
		Data:        data,
	})
	l.headHash = contentHash
	return seq, nil
}

// Get retrieves an entry by sequence number.
func (l *Ledger) Get(seq uint64) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq == 0 || seq > uint64(len(l.entries)) {
		return nil, fmt.Errorf("entry %d not found", seq)
	}
	entry := l.entries[seq-1]
	return &entry, nil
}

// Head returns the current head hash.
func (l *Ledger) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.headHash
}

// Length returns the number of entries.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the full log.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Verify checks the integrity of the entire chain.
func (l *Ledger) Verify() (bool, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prevHash := "genesis"
	for i, entry := range l.entries {
		if entry.PrevHash != prevHash {
			return false, fmt.Sprintf("chain broken at entry %d: expected prev %s, got %s", i+1, prevHash, entry.PrevHash)
		}
		computed, err := canonicalize.CanonicalHash(hashInput{
			Account:   l.accountAddr,
			Sequence:  entry.Sequence,
			Event:     entry.Event,
			IntentKey: entry.IntentKey,
			Role:      entry.Role,
			Data:      entry.Data,
			PrevHash:  entry.PrevHash,
		})
		if err != nil {
			return false, fmt.Sprintf("failed to hash entry %d", i+1)
		}
		if computed != entry.ContentHash {
			return false, fmt.Sprintf("hash mismatch at entry %d", i+1)
		}
		prevHash = entry.ContentHash
	}
	return true, "chain verified"
}

// AccountAddr returns the account this ledger belongs to.
func (l *Ledger) AccountAddr() string {
	return l.accountAddr
}
