////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chat

import (
	"strconv"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind int

const (
	// ValidationError is returned before any network call when an input is
	// rejected locally (e.g. an oversized attachment or a short password).
	ValidationError Kind = iota + 1

	// AuthError is returned when the identity provider rejects a credential.
	AuthError

	// NetworkError wraps failures of backend reads, writes, subscriptions and
	// uploads.
	NetworkError

	// StateError is returned when an operation is invoked in a state where it
	// cannot run (e.g. sending without a selected peer). Callers drop these
	// silently.
	StateError
)

// String returns a human-readable name of the Kind. This function adheres to
// the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case ValidationError:
		return "ValidationError"
	case AuthError:
		return "AuthError"
	case NetworkError:
		return "NetworkError"
	case StateError:
		return "StateError"
	default:
		return "INVALID KIND: " + strconv.Itoa(int(k))
	}
}

// Error is the error type returned by every operation of this package.
type Error struct {
	Kind Kind

	// Op is the name of the operation that failed.
	Op string

	Err error
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Error returns the error message. This function adheres to the error
// interface.
func (e *Error) Error() string {
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Cause returns the underlying error. It adheres to the causer interface used
// by errors.Cause.
func (e *Error) Cause() error { return e.Err }

// IsKind returns true if err is, or wraps, an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Sentinel errors wrapped by Error.
var (
	// ErrAttachmentTooLarge is returned when an attachment exceeds
	// Params.MaxAttachmentSize.
	ErrAttachmentTooLarge = errors.New("attachment exceeds the maximum size")

	// ErrNoPeer is returned by sends when no peer is selected.
	ErrNoPeer = errors.New("no peer selected")

	// ErrClosed is returned by operations on a session that was logged out.
	ErrClosed = errors.New("session is closed")
)
