/**
 * Error Taxonomy.
 *
 * Defines the typed error kinds shared across every NetDiag subsystem, so
 * that callers can branch on failure category without string matching.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a NetDiag failure into one of the taxonomy's categories.
type Kind int

const (
	// Unknown is the zero value; callers should never construct it directly.
	Unknown Kind = iota
	// Platform covers OS calls that failed, are unsupported, or lack permission.
	Platform
	// Config covers malformed or invalid configuration.
	Config
	// Dns covers name resolution failures.
	Dns
	// Transport covers socket or protocol I/O failures.
	Transport
	// Timeout covers any operation that exceeded its deadline.
	Timeout
	// NotFound covers missing interfaces, rollback points, or jobs.
	NotFound
	// PrerequisiteMissing covers an autofix action whose prerequisite failed.
	PrerequisiteMissing
	// Scheduler covers invalid cron expressions or dispatch failures.
	Scheduler
	// Ipc covers bind, read, write, or malformed-message failures.
	Ipc
	// Autofix covers verification or rollback failures.
	Autofix
	// Capture covers missing devices, permission errors, or invalid filters.
	Capture
)

func (k Kind) String() string {
	switch k {
	case Platform:
		return "platform"
	case Config:
		return "config"
	case Dns:
		return "dns"
	case Transport:
		return "transport"
	case Timeout:
		return "timeout"
	case NotFound:
		return "not_found"
	case PrerequisiteMissing:
		return "prerequisite_missing"
	case Scheduler:
		return "scheduler"
	case Ipc:
		return "ipc"
	case Autofix:
		return "autofix"
	case Capture:
		return "capture"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carried across package boundaries. Op
// names the failing operation ("probe.Ping", "autofix.Rollback", ...), Msg
// is a human-readable, secret-free description, and Err optionally wraps
// the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, ErrKind(Dns)) style matching against a sentinel
// built purely from a Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) && t.Err == nil && t.Op == "" && t.Msg == "" {
		return e.Kind == t.Kind
	}
	return false
}

// New builds an Error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an Error that carries an underlying cause.
func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// ErrKind returns a sentinel usable with errors.Is to test only the Kind.
func ErrKind(kind Kind) error {
	return &Error{Kind: kind}
}
