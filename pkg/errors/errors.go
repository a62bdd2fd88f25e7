// Package errors defines the error taxonomy shared by the index core.
// Recoverable conditions (capacity, duplicate ids, unknown facts) are
// returned as wrapped sentinel errors; programming/state defects (stream
// misuse, packed-array range faults) are raised as panics by the packages
// that detect them and never reach this taxonomy.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateDocument = errors.New("document id already present")
	ErrCapacityExhausted = errors.New("no shard has spare capacity")
	ErrShardFull         = errors.New("shard is at capacity")
	ErrUnknownFact       = errors.New("fact not registered")
	ErrUnknownGroup      = errors.New("unknown group id")
	ErrGroupReopened     = errors.New("group cannot be reopened")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrShutdown          = errors.New("ingestor is shut down")
)

// Kind classifies an error for operator-facing reporting. Capacity and
// caller-input conditions have different remediations (provision more shards
// vs. fix caller logic), so they must stay distinguishable.
type Kind int

const (
	KindInternal Kind = iota
	KindCapacity
	KindCallerInput
)

// IndexError wraps a sentinel error with the operation that produced it.
type IndexError struct {
	Err     error
	Op      string
	Message string
}

func (e *IndexError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Err.Error(), e.Message)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel error with an operation name and message.
func New(sentinel error, op string, message string) *IndexError {
	return &IndexError{Err: sentinel, Op: op, Message: message}
}

// Newf wraps a sentinel error with a formatted message.
func Newf(sentinel error, op string, format string, args ...any) *IndexError {
	return &IndexError{Err: sentinel, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the classification of err for operator reporting.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrCapacityExhausted), errors.Is(err, ErrShardFull):
		return KindCapacity
	case errors.Is(err, ErrDuplicateDocument),
		errors.Is(err, ErrUnknownFact),
		errors.Is(err, ErrUnknownGroup),
		errors.Is(err, ErrGroupReopened),
		errors.Is(err, ErrInvalidArgument):
		return KindCallerInput
	default:
		return KindInternal
	}
}
