package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
)

// Status classifies a single network attempt.
type Status string

const (
	// StatusOK means a response was received and its body fully read.
	// Any HTTP status code counts, including 4xx and 5xx.
	StatusOK Status = "ok"

	// StatusTimeout means the attempt exceeded its deadline.
	StatusTimeout Status = "timeout"

	// StatusConnectError means the connection could not be established
	// (DNS failure, refused, unreachable network).
	StatusConnectError Status = "connect_error"

	// StatusOtherError covers every other request failure.
	StatusOtherError Status = "other_error"
)

// Symbolic codes reported in place of an HTTP status when no response was received.
const (
	CodeTimeout      = "Timeout"
	CodeConnectError = "ConnectError"
	CodeError        = "Error"
)

// Messages attached to classified outcomes.
const (
	MessageOK           = "OK"
	MessageTimeout      = "timeout"
	MessageConnectError = "connection failed"

	// MessageCanceled marks an attempt aborted by its caller rather than by the site.
	MessageCanceled = "canceled"
)

// Outcome is the immutable result of one network attempt.
type Outcome struct {
	Status Status

	// StatusCode is the final HTTP status after redirects. Zero unless Status is StatusOK.
	StatusCode int

	// Message is "OK" on success, a fixed text for timeouts and connect
	// errors, and the underlying error text verbatim otherwise.
	Message string
}

// OK reports whether the attempt produced an HTTP response.
func (o Outcome) OK() bool {
	return o.Status == StatusOK
}

// Code renders the HTTP status code or the symbolic error tag.
func (o Outcome) Code() string {
	switch o.Status {
	case StatusOK:
		return strconv.Itoa(o.StatusCode)
	case StatusTimeout:
		return CodeTimeout
	case StatusConnectError:
		return CodeConnectError
	case StatusOtherError:
		return CodeError
	default:
		return CodeError
	}
}

// Success builds an outcome for a received response.
func Success(statusCode int) Outcome {
	return Outcome{Status: StatusOK, StatusCode: statusCode, Message: MessageOK}
}

// Classify maps a request error onto an outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Status: StatusOtherError, Message: "unknown error"}
	case isTimeout(err):
		return Outcome{Status: StatusTimeout, Message: MessageTimeout}
	case isConnectError(err):
		return Outcome{Status: StatusConnectError, Message: MessageConnectError}
	case errors.Is(err, context.Canceled):
		return Outcome{Status: StatusOtherError, Message: MessageCanceled}
	default:
		return Outcome{Status: StatusOtherError, Message: err.Error()}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH)
}
