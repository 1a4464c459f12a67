// Package nuberr defines the error taxonomy surfaced by the index and
// resource store: I/O failure, argument violation, cursor misuse and
// invariant violation. All four are fatal to the current operation.
package nuberr

import "github.com/pkg/errors"

// Kind classifies a failure so callers can branch on it without parsing
// error strings.
type Kind int

const (
	// KindIO covers read/write/seek failures and any sanity-check
	// mismatch detected while decoding a page or header from disk.
	KindIO Kind = iota
	// KindInvalidArgument covers an oversized key passed to Insert.
	KindInvalidArgument
	// KindLogic covers an operation that requires a positioned cursor
	// when none is set (e.g. Change with no current key).
	KindLogic
	// KindRuntime covers invariant violations: path-stack overflow,
	// a decompressed blob whose length doesn't match its header, or
	// free-list corruption.
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io_error"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindLogic:
		return "logic_error"
	case KindRuntime:
		return "runtime_error"
	default:
		return "unknown_error"
	}
}

// Error is the concrete error type returned across package boundaries.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.Kind.String() + ": " + e.Op
	}
	return e.Kind.String() + ": " + e.Op + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// New builds an Error of the given kind, wrapping msg with pkg/errors so
// callers retain a stack trace for diagnosis.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, err: errors.New(msg)}
}

// Wrap attaches an operation name and kind to an underlying error.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.WithStack(err)}
}

// IO is shorthand for Wrap(KindIO, op, err).
func IO(op string, err error) error { return Wrap(KindIO, op, err) }

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}
