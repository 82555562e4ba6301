package retry

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"syscall"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// Class is the retry classification of an error.
type Class int

const (
	// Permanent errors are never retried.
	Permanent Class = iota
	// Transient errors are retried up to the policy cap.
	Transient
)

func (c Class) String() string {
	if c == Transient {
		return "transient"
	}
	return "permanent"
}

// Classify sorts err into Transient (connection reset/closed/refused,
// timeouts, HTTP 429 and 5xx) or Permanent (everything else, notably
// not-found, access denied, invalid path, validation and authentication).
func Classify(err error) Class {
	if err == nil || errors.Is(err, context.Canceled) {
		return Permanent
	}

	var validationErr *types.ValidationError
	var authErr *types.AuthenticationError
	var fatalErr *types.FatalError
	if errors.As(err, &validationErr) || errors.As(err, &authErr) || errors.As(err, &fatalErr) {
		return Permanent
	}

	var remoteErr *types.RemoteError
	if errors.As(err, &remoteErr) {
		if remoteErr.Transient {
			return Transient
		}
		return Permanent
	}

	var statusErr *types.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500 {
			return Transient
		}
		return Permanent
	}

	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrInvalid) {
		return Permanent
	}

	if errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Transient
	}

	return Permanent
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return Classify(err) == Transient
}
