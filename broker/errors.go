package broker

import (
	"errors"
	"fmt"
)

// ErrorClass tells the executor how to react to a gateway failure.
type ErrorClass int

const (
	// ClassUnknown is an ambiguous outcome (lost response, broken pipe
	// mid-request). It must be resolved with PollStatus before any retry,
	// otherwise a retry can double-submit.
	ClassUnknown ErrorClass = iota
	// ClassTransient covers timeouts, rate limits and 5xx-equivalents.
	// Retry-eligible with backoff.
	ClassTransient
	// ClassRejected covers invalid orders and insufficient balance.
	// Terminal for that order, never retried.
	ClassRejected
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is a classified gateway failure.
type Error struct {
	Class ErrorClass
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("broker: %s: %s: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	return &Error{Class: ClassTransient, Op: op, Err: err}
}

func Rejected(op string, err error) error {
	return &Error{Class: ClassRejected, Op: op, Err: err}
}

func Unknown(op string, err error) error {
	return &Error{Class: ClassUnknown, Op: op, Err: err}
}

// ClassOf classifies err. Anything that is not a *broker.Error is Unknown:
// when in doubt the executor must reconcile, not resubmit.
func ClassOf(err error) ErrorClass {
	var be *Error
	if errors.As(err, &be) {
		return be.Class
	}
	return ClassUnknown
}

func IsTransient(err error) bool { return err != nil && ClassOf(err) == ClassTransient }
func IsRejected(err error) bool  { return err != nil && ClassOf(err) == ClassRejected }
