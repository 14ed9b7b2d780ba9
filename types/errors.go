package types

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyLinked = errors.New("foreign account is already linked")
	ErrUnauthorized  = errors.New("unauthorized")

	// ErrTruncated accompanies a partial list cut off by a page cap.
	ErrTruncated = errors.New("list truncated")
)

// DiscoveryError means the configuration of a foreign host could not be determined.
type DiscoveryError struct {
	Hostname string
	Err      error
}

func (e *DiscoveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not discover host %s", e.Hostname)
	}
	return fmt.Sprintf("could not discover host %s: %v", e.Hostname, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ValidationError reports a malformed profile or record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LinkError means the foreign network permanently rejected the credentials of User.
type LinkError struct {
	User ForeignUser
	Err  error
}

func (e *LinkError) Error() string {
	return "Disconnected link with " + e.User.ID
}

func (e *LinkError) Unwrap() error { return e.Err }

// TransientError wraps a network or parse failure that carries no authorization signal.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// AsLinkError extracts a LinkError from err.
func AsLinkError(err error) (*LinkError, bool) {
	var le *LinkError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
