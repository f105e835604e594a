package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that no record exists for a profile id. Callers fall
	// back to registry defaults.
	ErrNotFound = errors.New("profile_not_found")
	// ErrNotEditing reports a draft operation outside an edit session.
	ErrNotEditing = errors.New("profile_not_editing")
)

// UnknownFieldError is a registry/key mismatch and indicates a caller bug.
type UnknownFieldError struct {
	Key string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Key)
}

type TypeMismatchError struct {
	Key  string
	Kind Kind
	Want Shape
	Got  Shape
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %q (%s) expects %s value, got %s", e.Key, e.Kind, e.Want, e.Got)
}

type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
}

// StorageError wraps a failure of the persistence collaborator. The in-memory
// draft is never discarded because of it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func IsUnknownField(err error) bool {
	_, ok := errors.AsType[*UnknownFieldError](err)
	return ok
}

func IsTypeMismatch(err error) bool {
	_, ok := errors.AsType[*TypeMismatchError](err)
	return ok
}

func IsValidation(err error) bool {
	_, ok := errors.AsType[*ValidationError](err)
	return ok
}

func IsStorage(err error) bool {
	_, ok := errors.AsType[*StorageError](err)
	return ok
}
