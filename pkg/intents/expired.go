package intents

import (
	"fmt"

	"github.com/covenant-labs/covenant/pkg/auth"
)

// Expired is the single-use cleanup token produced when an intent leaves the
// collection, either fully executed or time-barred. Every module that staged
// an action is contractually obligated to remove it again; the token cannot
// be discarded while payloads remain.
type Expired struct {
	key        string
	issuer     auth.Issuer
	startIndex int
	actions    []any
}

func newExpired[O Outcome[O]](intent *Intent[O]) *Expired {
	return &Expired{
		key:     intent.key,
		issuer:  intent.issuer,
		actions: intent.actions,
	}
}

// RemoveAction removes and returns the payload at the current start index.
// The requested type must match the stored payload exactly.
func RemoveAction[A any](e *Expired) (A, error) {
	var zero A
	if len(e.actions) == 0 {
		return zero, fmt.Errorf("%w: %q is drained", ErrActionNotFound, e.key)
	}
	action, ok := e.actions[0].(A)
	if !ok {
		return zero, fmt.Errorf("%w: %q holds %T at index %d", ErrActionNotFound, e.key, e.actions[0], e.startIndex)
	}
	e.actions = e.actions[1:]
	e.startIndex++
	return action, nil
}

// DestroyEmpty discards the token. Fails while actions remain.
func (e *Expired) DestroyEmpty() error {
	if len(e.actions) > 0 {
		return fmt.Errorf("%w: %q holds %d payloads", ErrActionsNotEmpty, e.key, len(e.actions))
	}
	return nil
}

// Key returns the originating intent's key.
func (e *Expired) Key() string { return e.key }

// Issuer returns the provenance copied from the intent.
func (e *Expired) Issuer() auth.Issuer { return e.issuer }

// StartIndex returns the index of the next payload to remove, counted from
// the original action list.
func (e *Expired) StartIndex() int { return e.startIndex }

// Remaining returns the number of payloads still held.
func (e *Expired) Remaining() int { return len(e.actions) }
