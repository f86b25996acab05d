// Package intents implements the staging area of the framework: pending
// intents keyed by name, the object-lock set that shields referenced objects
// while an intent is pending, and the single-use Executable and Expired
// tokens that gate action execution and cleanup.
package intents

import (
	"errors"
	"fmt"
	"time"

	"github.com/covenant-labs/covenant/pkg/auth"
)

var (
	ErrKeyAlreadyExists          = errors.New("intent key already exists")
	ErrIntentNotFound            = errors.New("intent not found")
	ErrNoExecutionTime           = errors.New("intent needs at least one execution time")
	ErrTimesNotAscending         = errors.New("execution times must be strictly ascending")
	ErrExpirationBeforeExecution = errors.New("expiration must be after the first execution time")
	ErrCantBeExecutedYet         = errors.New("next execution time has not passed")
	ErrCantBeRemovedYet          = errors.New("intent still has scheduled executions")
	ErrHasntExpired              = errors.New("intent has not expired")
	ErrActionsRemaining          = errors.New("executable still has unprocessed actions")
	ErrActionsNotEmpty           = errors.New("expired intent still holds action payloads")
	ErrActionNotFound            = errors.New("no action of the requested type at this position")
	ErrObjectAlreadyLocked       = errors.New("object is already locked")
	ErrObjectNotLocked           = errors.New("object is not locked")
	ErrObjectLocked              = errors.New("object is locked by a pending intent")
	ErrIntentSealed              = errors.New("intent is already staged, actions are fixed")
)

// Outcome is the contract an approval-policy outcome type must satisfy. The
// engine never inspects approval state; it only hands out copies.
type Outcome[O any] interface {
	Clone() O
}

// Params carries the caller-chosen fields of a new intent.
type Params struct {
	Key            string
	Description    string
	ExecutionTimes []time.Time
	ExpirationTime time.Time
}

// Validate enforces the schedule invariants: non-empty, strictly ascending,
// first execution before expiration.
func (p Params) Validate() error {
	if len(p.ExecutionTimes) == 0 {
		return fmt.Errorf("%w: %q", ErrNoExecutionTime, p.Key)
	}
	for i := 1; i < len(p.ExecutionTimes); i++ {
		if !p.ExecutionTimes[i].After(p.ExecutionTimes[i-1]) {
			return fmt.Errorf("%w: %q", ErrTimesNotAscending, p.Key)
		}
	}
	if !p.ExecutionTimes[0].Before(p.ExpirationTime) {
		return fmt.Errorf("%w: %q", ErrExpirationBeforeExecution, p.Key)
	}
	return nil
}

// Intent is one staged proposal: an ordered action list behind an approval
// outcome and an execution schedule. Actions are opaque to the engine.
type Intent[O Outcome[O]] struct {
	issuer         auth.Issuer
	key            string
	description    string
	executionTimes []time.Time
	expirationTime time.Time
	actions        []any
	outcome        O
	sealed         bool
	outstanding    int
}

// NewIntent builds an empty intent. The caller (the account) has already
// verified auth and dependency; params are validated here.
func NewIntent[O Outcome[O]](issuer auth.Issuer, params Params, outcome O) (*Intent[O], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	times := make([]time.Time, len(params.ExecutionTimes))
	copy(times, params.ExecutionTimes)
	return &Intent[O]{
		issuer:         issuer,
		key:            params.Key,
		description:    params.Description,
		executionTimes: times,
		expirationTime: params.ExpirationTime,
		outcome:        outcome,
	}, nil
}

// AddAction appends a payload during staging. Only the constructing module
// may add, and only before the intent is inserted into the collection.
func (i *Intent[O]) AddAction(witness any, payload any) error {
	if err := i.issuer.AssertIsConstructor(witness); err != nil {
		return err
	}
	if i.sealed {
		return fmt.Errorf("%w: %q", ErrIntentSealed, i.key)
	}
	i.actions = append(i.actions, payload)
	return nil
}

// seal fixes the action list; called by the collection on insert.
func (i *Intent[O]) seal() { i.sealed = true }

// popExecutionTime removes and returns the earliest scheduled time, failing
// if now precedes it.
func (i *Intent[O]) popExecutionTime(now time.Time) (time.Time, error) {
	if len(i.executionTimes) == 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrNoExecutionTime, i.key)
	}
	next := i.executionTimes[0]
	if now.Before(next) {
		return time.Time{}, fmt.Errorf("%w: %q not executable until %s", ErrCantBeExecutedYet, i.key, next.UTC())
	}
	i.executionTimes = i.executionTimes[1:]
	return next, nil
}

// Issuer returns the provenance record fixed at creation.
func (i *Intent[O]) Issuer() auth.Issuer { return i.issuer }

// Key returns the intent's unique key.
func (i *Intent[O]) Key() string { return i.key }

// Description returns the human-readable description.
func (i *Intent[O]) Description() string { return i.description }

// ExecutionTimes returns the remaining schedule.
func (i *Intent[O]) ExecutionTimes() []time.Time {
	out := make([]time.Time, len(i.executionTimes))
	copy(out, i.executionTimes)
	return out
}

// ExpirationTime returns the deadline after which anyone may reclaim the
// intent.
func (i *Intent[O]) ExpirationTime() time.Time { return i.expirationTime }

// ActionCount returns the number of staged actions.
func (i *Intent[O]) ActionCount() int { return len(i.actions) }

// Action returns a read-only view of the action at idx.
func (i *Intent[O]) Action(idx int) (any, error) {
	if idx < 0 || idx >= len(i.actions) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrActionNotFound, idx, len(i.actions))
	}
	return i.actions[idx], nil
}

// Outcome returns a mutable reference to the approval state. Policy modules
// own its semantics.
func (i *Intent[O]) Outcome() *O { return &i.outcome }

// OutcomeCopy returns an independent copy of the approval state.
func (i *Intent[O]) OutcomeCopy() O { return i.outcome.Clone() }
