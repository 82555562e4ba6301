package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnsupported is returned by sessions that cannot perform an operation,
// e.g. reading native permissions over a transport that has none.
var ErrUnsupported = errors.New("operation not supported by this session")

// ValidationError reports a malformed rule-set or configuration value. It is
// surfaced before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// RemoteError wraps a failure of a call against the remote store with the
// unit it concerned and whether it is worth retrying.
type RemoteError struct {
	Op        string
	Path      string
	Transient bool
	Err       error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.Code, http.StatusText(e.Code), e.URL)
}

// FatalError is a transient failure that outlived its retries. It is scoped
// to one unit (a directory, a page, a file) and never to a whole pass.
type FatalError struct {
	Op       string
	Path     string
	Attempts int
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Op, e.Path, e.Attempts, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ContentReadError reports that one file's content could not be read. It is
// never fatal to the emission loop.
type ContentReadError struct {
	Path string
	Err  error
}

func (e *ContentReadError) Error() string {
	return fmt.Sprintf("reading content of %s: %v", e.Path, e.Err)
}

func (e *ContentReadError) Unwrap() error { return e.Err }

// AuthenticationError is raised while establishing a connection (bad
// credentials, disabled account, logon restrictions). It is fatal to the
// whole pass.
type AuthenticationError struct {
	Server string
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication to %s failed: %s", e.Server, e.Reason)
	}
	return fmt.Sprintf("authentication to %s failed: %s: %v", e.Server, e.Reason, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// IsAuthentication reports whether err is (or wraps) an AuthenticationError.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
