package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

var (
	// ErrSessionActive is returned by Start while another send is in flight.
	// Concurrent sends are rejected, not queued.
	ErrSessionActive = errors.New("a session is already active")

	// ErrSessionTerminal is returned by Start on a session that has already
	// reached a terminal phase.
	ErrSessionTerminal = errors.New("session already finished")
)

// FailureClass buckets non-recoverable errors so the presentation layer can
// offer context-appropriate guidance.
type FailureClass string

const (
	FailureNetwork FailureClass = "network"
	FailureTimeout FailureClass = "timeout"
	FailureAuth    FailureClass = "auth"
	FailureGeneric FailureClass = "generic"
)

// Failure is the single user-displayable error a failed session carries.
type Failure struct {
	Class   FailureClass
	Message string
	cause   error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return f.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.cause
}

// Retryable reports whether the UI should offer a retry action for this
// failure class.
func (f *Failure) Retryable() bool {
	return f.Class == FailureNetwork || f.Class == FailureTimeout
}

// newFailure builds a Failure with the given class and message.
func newFailure(class FailureClass, cause error, format string, args ...any) *Failure {
	return &Failure{
		Class:   class,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// classifyError maps a transport or protocol error to a Failure.
func classifyError(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newFailure(FailureTimeout, err, "the request timed out")
	case errors.Is(err, context.Canceled):
		return newFailure(FailureGeneric, err, "the request was cancelled")
	case isTimeout(err):
		return newFailure(FailureTimeout, err, "the server took too long to respond")
	case isConnectionError(err):
		return newFailure(FailureNetwork, err, "could not reach the server")
	default:
		return newFailure(FailureGeneric, err, "request failed: %v", err)
	}
}

// classifyStatus maps an HTTP error status to a Failure.
func classifyStatus(status int, body string) *Failure {
	switch {
	case status == http.StatusUnauthorized:
		return newFailure(FailureAuth, nil, "authorization failed")
	case status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return newFailure(FailureNetwork, nil, "server unavailable (HTTP %d)", status)
	case status >= 400:
		msg := fmt.Sprintf("server rejected the request (HTTP %d)", status)
		if body != "" {
			msg = fmt.Sprintf("%s: %s", msg, body)
		}
		return newFailure(FailureGeneric, nil, "%s", msg)
	default:
		return newFailure(FailureGeneric, nil, "unexpected HTTP status %d", status)
	}
}

// retryableConnectError reports whether a connection-establishment error is
// worth another attempt. Mid-stream errors are never retried.
func retryableConnectError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return isTimeout(err) || isConnectionError(err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
