package intents

import (
	"fmt"

	"github.com/covenant-labs/covenant/pkg/auth"
)

// Executable is the single-use execution token produced by executing an
// intent. It must be threaded through every action-processing call and can
// only be discarded by confirming at cursor == action count. Go cannot make
// a value linear, so the guarantee is a runtime one: Finished reports
// whether the token was confirmed, and leaving a transaction with an
// unfinished token is a hard caller bug.
type Executable struct {
	key      string
	issuer   auth.Issuer
	cursor   int
	total    int
	finished bool
}

// newExecutable is called by the account when an intent's schedule fires.
func newExecutable(key string, issuer auth.Issuer, total int) *Executable {
	return &Executable{key: key, issuer: issuer, total: total}
}

// advance moves the cursor forward by exactly one and returns the index to
// process. The cursor never rewinds.
func (e *Executable) advance() (int, error) {
	if e.finished {
		return 0, fmt.Errorf("executable for %q already confirmed", e.key)
	}
	if e.cursor >= e.total {
		return 0, fmt.Errorf("%w: %q has %d actions", ErrActionNotFound, e.key, e.total)
	}
	idx := e.cursor
	e.cursor++
	return idx, nil
}

// confirm consumes the token. Fails unless every action was processed.
func (e *Executable) confirm() error {
	if e.finished {
		return fmt.Errorf("executable for %q already confirmed", e.key)
	}
	if e.cursor != e.total {
		return fmt.Errorf("%w: %q at %d of %d", ErrActionsRemaining, e.key, e.cursor, e.total)
	}
	e.finished = true
	return nil
}

// Key returns the originating intent's key.
func (e *Executable) Key() string { return e.key }

// Issuer returns the provenance copied from the intent.
func (e *Executable) Issuer() auth.Issuer { return e.issuer }

// Cursor returns the index of the next action to process.
func (e *Executable) Cursor() int { return e.cursor }

// Total returns the staged action count.
func (e *Executable) Total() int { return e.total }

// Finished reports whether the token has been confirmed.
func (e *Executable) Finished() bool { return e.finished }
