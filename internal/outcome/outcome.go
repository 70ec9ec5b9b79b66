// Package outcome classifies the result of a single remote API call.
//
// Every adapter returns an Outcome instead of a bare error so the retry policy
// and the workers can decide, without inspecting HTTP details, whether a call
// may be retried, must be skipped, or has to abort the whole run.
package outcome

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the classification of a call result.
type Kind int

const (
	Success Kind = iota
	RateLimited
	AuthFailure
	PermissionDenied
	NotFound
	TransientFailure
)

var kindNames = map[Kind]string{
	Success:          "success",
	RateLimited:      "rate_limited",
	AuthFailure:      "auth_failure",
	PermissionDenied: "permission_denied",
	NotFound:         "not_found",
	TransientFailure: "transient_failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kinds lists every non-success kind in a stable order.
func Kinds() []Kind {
	return []Kind{RateLimited, AuthFailure, PermissionDenied, NotFound, TransientFailure}
}

var (
	// ErrAuth marks a rejected or missing credential. It is fatal for the run.
	ErrAuth = errors.New("credential rejected")
	// ErrRunAborted is the cancellation cause used once a fatal outcome was seen.
	ErrRunAborted = errors.New("run aborted")

	errRateLimited = errors.New("rate limited")
	errPermission  = errors.New("permission denied")
	errNotFound    = errors.New("not found")
	errTransient   = errors.New("transient failure")
)

// Outcome is the classified result of one call.
type Outcome struct {
	Kind Kind

	// Status is the HTTP status, or 0 when no response was received.
	Status int

	// RetryAfter is the server supplied wait hint for RateLimited outcomes.
	// Zero means no hint was given.
	RetryAfter time.Duration

	// Cause carries the underlying error for non-success outcomes.
	Cause error

	// Attempts is the number of calls made by the retry policy (>= 1 once set).
	Attempts int

	// Exhausted is set by the retry policy when the attempt bound was reached.
	Exhausted bool
}

func OK(status int) Outcome {
	return Outcome{Kind: Success, Status: status}
}

func Limited(status int, hint time.Duration, cause error) Outcome {
	return Outcome{Kind: RateLimited, Status: status, RetryAfter: hint, Cause: cause}
}

func Auth(status int, cause error) Outcome {
	return Outcome{Kind: AuthFailure, Status: status, Cause: cause}
}

func Denied(status int, cause error) Outcome {
	return Outcome{Kind: PermissionDenied, Status: status, Cause: cause}
}

func Missing(status int, cause error) Outcome {
	return Outcome{Kind: NotFound, Status: status, Cause: cause}
}

func Transient(status int, cause error) Outcome {
	return Outcome{Kind: TransientFailure, Status: status, Cause: cause}
}

func (o Outcome) OK() bool { return o.Kind == Success }

// Fatal reports whether the outcome invalidates every later call of the run.
func (o Outcome) Fatal() bool { return o.Kind == AuthFailure }

// Retryable reports whether the kind is eligible for another attempt.
func (o Outcome) Retryable() bool {
	return o.Kind == TransientFailure || o.Kind == RateLimited
}

// Err converts a non-success outcome to an error. Success returns nil.
// AuthFailure errors match ErrAuth with errors.Is.
func (o Outcome) Err() error {
	if o.Kind == Success {
		return nil
	}
	var base error
	switch o.Kind {
	case AuthFailure:
		base = ErrAuth
	case RateLimited:
		base = errRateLimited
	case PermissionDenied:
		base = errPermission
	case NotFound:
		base = errNotFound
	default:
		base = errTransient
	}
	msg := base.Error()
	if o.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, o.Status)
	}
	if o.Exhausted {
		msg = fmt.Sprintf("%s after %d attempts", msg, o.Attempts)
	}
	if o.Cause != nil {
		return &Error{msg: msg, base: base, cause: o.Cause}
	}
	return &Error{msg: msg, base: base}
}

func (o Outcome) String() string {
	if err := o.Err(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("success (HTTP %d)", o.Status)
}

// Error is the error form of a non-success Outcome.
type Error struct {
	msg   string
	base  error
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.base, e.cause}
	}
	return []error{e.base}
}
