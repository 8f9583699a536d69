package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStateConflict is matched by errors returned when an operation is
	// not valid in the session's current state.
	ErrStateConflict = errors.New("state conflict")

	// ErrValidationFailed is matched by errors about missing or invalid input.
	ErrValidationFailed = errors.New("validation failed")

	// ErrUpstreamBusiness is matched when a back-end rejected the request (4xx).
	ErrUpstreamBusiness = errors.New("upstream rejected request")

	// ErrUpstreamTransient is matched by network, timeout and 5xx failures.
	ErrUpstreamTransient = errors.New("upstream unavailable")

	// ErrStoreUnavailable is matched by session store infrastructure failures.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrPersistFailed is matched when the progress recorder could not store
	// a quiz result. The session transition that preceded it still stands.
	ErrPersistFailed = errors.New("progress persistence failed")
)

// StateConflictError is returned when the current state is not one of the
// states an operation requires.
type StateConflictError struct {
	Op      string
	Allowed []State
	Actual  State
}

func (e *StateConflictError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	msg := fmt.Sprintf("state conflict: need one of [%s], current %s", strings.Join(allowed, ", "), e.Actual)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	return msg
}

func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }

// ValidationError describes invalid or unresolvable input. Upstream is set
// when the offending value came from a back-end response rather than the
// caller.
type ValidationError struct {
	Field    string
	Reason   string
	Upstream bool
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// UpstreamError is a failed call to the planner or content back-end.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	Transient  bool
	Err        error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	if e.Transient {
		return target == ErrUpstreamTransient
	}
	return target == ErrUpstreamBusiness
}

// StoreError wraps a session store failure.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// PersistError wraps a progress recorder failure.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "persist quiz result: " + e.Err.Error() }

func (e *PersistError) Unwrap() error { return e.Err }

func (e *PersistError) Is(target error) bool { return target == ErrPersistFailed }
