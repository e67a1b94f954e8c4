package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure for callers.
type Kind int

const (
	// KindUpstream covers store and chain failures; callers may retry later.
	KindUpstream Kind = iota
	KindNotFound
	KindInvalidInput
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	default:
		return "upstream_failure"
	}
}

// Error carries a kind, the failing operation and a human-readable message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Invalid(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Conflict(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a store or chain failure. Already classified errors pass
// through unchanged.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Kind: KindUpstream, Op: op, Message: "upstream failure", Err: err}
}

// StaleVersion reports a lost optimistic-concurrency race on an entity.
func StaleVersion(op, entity, id string) *Error {
	return Conflict(op, "stale version for %s %s", entity, id)
}

// KindOf classifies err. Unclassified errors count as upstream failures.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUpstream
}

// Message returns the human-readable part of err without the op prefix.
func Message(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Message
	}
	return err.Error()
}

func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

func IsConflict(err error) bool {
	return err != nil && KindOf(err) == KindConflict
}
