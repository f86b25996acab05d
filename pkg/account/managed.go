package account

import (
	"errors"
	"fmt"

	"github.com/covenant-labs/covenant/pkg/auth"
	"github.com/covenant-labs/covenant/pkg/intents"
)

var (
	ErrManagedKeyExists   = errors.New("managed key already exists")
	ErrManagedKeyNotFound = errors.New("managed key not found")
	ErrManagedWrongType   = errors.New("managed value has a different type")
)

const objectPrefix = "object::"

// ManageStruct attaches an auxiliary value to the account under key.
// Dependency-gated; modules use this to persist state (treasuries, locked
// capabilities) scoped to the account.
func (a *Account[C, O]) ManageStruct(key string, value any, vw auth.VersionWitness) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	if _, ok := a.managed[key]; ok {
		return fmt.Errorf("%w: %q", ErrManagedKeyExists, key)
	}
	a.managed[key] = value
	return nil
}

// BorrowStruct returns the managed value stored under key without removing
// it. Dependency-gated.
func (a *Account[C, O]) BorrowStruct(key string, vw auth.VersionWitness) (any, error) {
	if err := a.assertIsDep(vw); err != nil {
		return nil, err
	}
	value, ok := a.managed[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrManagedKeyNotFound, key)
	}
	return value, nil
}

// RemoveStruct detaches and returns the managed value stored under key.
// Dependency-gated.
func (a *Account[C, O]) RemoveStruct(key string, vw auth.VersionWitness) (any, error) {
	if err := a.assertIsDep(vw); err != nil {
		return nil, err
	}
	value, ok := a.managed[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrManagedKeyNotFound, key)
	}
	delete(a.managed, key)
	return value, nil
}

// ManageObject attaches an owned object under its id.
func (a *Account[C, O]) ManageObject(objectID string, value any, vw auth.VersionWitness) error {
	return a.ManageStruct(objectPrefix+objectID, value, vw)
}

// BorrowObject returns the managed object stored under objectID.
func (a *Account[C, O]) BorrowObject(objectID string, vw auth.VersionWitness) (any, error) {
	return a.BorrowStruct(objectPrefix+objectID, vw)
}

// RemoveObject detaches the managed object stored under objectID. An object
// reserved by a pending intent cannot be removed.
func (a *Account[C, O]) RemoveObject(objectID string, vw auth.VersionWitness) (any, error) {
	if err := a.intents.AssertNotLocked(objectID); err != nil {
		return nil, err
	}
	return a.RemoveStruct(objectPrefix+objectID, vw)
}

// HasManaged reports whether a managed value exists under key.
func (a *Account[C, O]) HasManaged(key string) bool {
	_, ok := a.managed[key]
	return ok
}

// BorrowStructAs is the typed variant of BorrowStruct.
func BorrowStructAs[T any, C any, O intents.Outcome[O]](a *Account[C, O], key string, vw auth.VersionWitness) (T, error) {
	var zero T
	value, err := a.BorrowStruct(key, vw)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q holds %T", ErrManagedWrongType, key, value)
	}
	return typed, nil
}

// RemoveStructAs is the typed variant of RemoveStruct.
func RemoveStructAs[T any, C any, O intents.Outcome[O]](a *Account[C, O], key string, vw auth.VersionWitness) (T, error) {
	var zero T
	value, err := a.RemoveStruct(key, vw)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		// Put it back; a type mismatch must not destroy the value.
		a.managed[key] = value
		return zero, fmt.Errorf("%w: %q holds %T", ErrManagedWrongType, key, value)
	}
	return typed, nil
}
