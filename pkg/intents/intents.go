package intents

import (
	"fmt"
	"time"
)

// Intents is the keyed collection of pending intents owned by one account,
// plus the set of object ids those intents have reserved. Lookup is a linear
// scan; uniqueness is enforced on insert, which is fine at multisig scale.
type Intents[O Outcome[O]] struct {
	inner  []*Intent[O]
	locked map[string]struct{}
}

// NewIntents creates an empty collection.
func NewIntents[O Outcome[O]]() *Intents[O] {
	return &Intents[O]{locked: make(map[string]struct{})}
}

// Add inserts an intent, sealing its action list. Duplicate keys are
// rejected.
func (c *Intents[O]) Add(intent *Intent[O]) error {
	if c.Contains(intent.key) {
		return fmt.Errorf("%w: %q", ErrKeyAlreadyExists, intent.key)
	}
	intent.seal()
	c.inner = append(c.inner, intent)
	return nil
}

// Get returns the intent stored under key.
func (c *Intents[O]) Get(key string) (*Intent[O], error) {
	for _, intent := range c.inner {
		if intent.key == key {
			return intent, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrIntentNotFound, key)
}

// Contains reports whether key is present.
func (c *Intents[O]) Contains(key string) bool {
	for _, intent := range c.inner {
		if intent.key == key {
			return true
		}
	}
	return false
}

// Keys returns the stored keys in insertion order.
func (c *Intents[O]) Keys() []string {
	keys := make([]string, 0, len(c.inner))
	for _, intent := range c.inner {
		keys = append(keys, intent.key)
	}
	return keys
}

// Len returns the number of pending intents.
func (c *Intents[O]) Len() int { return len(c.inner) }

// remove drops the intent stored under key and returns it.
func (c *Intents[O]) remove(key string) (*Intent[O], error) {
	for i, intent := range c.inner {
		if intent.key == key {
			c.inner = append(c.inner[:i], c.inner[i+1:]...)
			return intent, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrIntentNotFound, key)
}

// Execute pops the earliest scheduled time of the intent under key and
// returns a fresh executable plus an independent copy of the approval
// outcome. Approval satisfaction is the caller's policy to check.
func (c *Intents[O]) Execute(key string, now time.Time) (*Executable, O, error) {
	var zero O
	intent, err := c.Get(key)
	if err != nil {
		return nil, zero, err
	}
	if _, err := intent.popExecutionTime(now); err != nil {
		return nil, zero, err
	}
	intent.outstanding++
	return newExecutable(intent.key, intent.issuer, len(intent.actions)), intent.OutcomeCopy(), nil
}

// ProcessAction advances the executable's cursor by exactly one and returns
// a read-only view of the action at that position.
func (c *Intents[O]) ProcessAction(e *Executable) (any, error) {
	intent, err := c.Get(e.key)
	if err != nil {
		return nil, err
	}
	idx, err := e.advance()
	if err != nil {
		return nil, err
	}
	return intent.Action(idx)
}

// ConfirmExecution consumes the executable. Fails with ErrActionsRemaining
// unless its cursor reached the action count.
func (c *Intents[O]) ConfirmExecution(e *Executable) error {
	intent, err := c.Get(e.key)
	if err != nil {
		return err
	}
	if err := e.confirm(); err != nil {
		return err
	}
	intent.outstanding--
	return nil
}

// DestroyEmpty removes a fully executed intent (no scheduled times left, no
// unconfirmed executable) and hands its remaining action payloads to an
// Expired token for cleanup.
func (c *Intents[O]) DestroyEmpty(key string) (*Expired, error) {
	intent, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	if len(intent.executionTimes) > 0 {
		return nil, fmt.Errorf("%w: %q has %d scheduled executions", ErrCantBeRemovedYet, key, len(intent.executionTimes))
	}
	if intent.outstanding > 0 {
		return nil, fmt.Errorf("%w: %q has an unconfirmed execution", ErrActionsRemaining, key)
	}
	intent, _ = c.remove(key)
	return newExpired(intent), nil
}

// DeleteExpired removes an intent whose expiration time has passed,
// regardless of approval or execution state.
func (c *Intents[O]) DeleteExpired(key string, now time.Time) (*Expired, error) {
	intent, err := c.Get(key)
	if err != nil {
		return nil, err
	}
	if now.Before(intent.expirationTime) {
		return nil, fmt.Errorf("%w: %q expires at %s", ErrHasntExpired, key, intent.expirationTime.UTC())
	}
	intent, _ = c.remove(key)
	return newExpired(intent), nil
}

// Lock reserves an object id for a pending intent.
func (c *Intents[O]) Lock(objectID string) error {
	if _, ok := c.locked[objectID]; ok {
		return fmt.Errorf("%w: %s", ErrObjectAlreadyLocked, objectID)
	}
	c.locked[objectID] = struct{}{}
	return nil
}

// Unlock releases a reserved object id.
func (c *Intents[O]) Unlock(objectID string) error {
	if _, ok := c.locked[objectID]; !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotLocked, objectID)
	}
	delete(c.locked, objectID)
	return nil
}

// IsLocked reports whether objectID is reserved by a pending intent. Any
// code that would mutate such an object must check this first.
func (c *Intents[O]) IsLocked(objectID string) bool {
	_, ok := c.locked[objectID]
	return ok
}

// AssertNotLocked fails with ErrObjectLocked when objectID is reserved.
func (c *Intents[O]) AssertNotLocked(objectID string) error {
	if c.IsLocked(objectID) {
		return fmt.Errorf("%w: %s", ErrObjectLocked, objectID)
	}
	return nil
}
