package checker

import (
	"fmt"
	"strconv"

	"github.com/Sternrassler/urlcheck/pkg/probe"
)

// Kind tags the variant of a Result.
type Kind string

const (
	// KindHTTP means a response was received; StatusCode is set.
	KindHTTP Kind = "http"

	KindTimeout      Kind = "timeout"
	KindConnectError Kind = "connect_error"
	KindError        Kind = "error"

	// KindInvalid marks input that does not start with an http or https scheme.
	// No request is made for it.
	KindInvalid Kind = "invalid"
)

// Fixed codes and messages used in results.
const (
	CodeInvalid    = "invalid"
	MessageInvalid = "no scheme"

	// MessageNotFound replaces "OK" when the resolved status is 404.
	MessageNotFound = "error"
)

// Result is the final outcome for one input URL after retry resolution.
type Result struct {
	// Index is the position of the URL in the input list.
	Index int `json:"index"`

	// URL is the input text as given.
	URL string `json:"url"`

	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`

	// SwitchedTo holds the alternate-scheme URL when it produced the result.
	SwitchedTo string `json:"switched_to,omitempty"`
}

// Code renders the HTTP status code or the symbolic tag.
func (r Result) Code() string {
	switch r.Kind {
	case KindHTTP:
		return strconv.Itoa(r.StatusCode)
	case KindTimeout:
		return probe.CodeTimeout
	case KindConnectError:
		return probe.CodeConnectError
	case KindError:
		return probe.CodeError
	case KindInvalid:
		return CodeInvalid
	default:
		return probe.CodeError
	}
}

// Broken reports whether the row should be flagged: every failure kind and
// an exact 404. Other 4xx and 5xx codes are not flagged.
func (r Result) Broken() bool {
	switch r.Kind {
	case KindHTTP:
		return r.StatusCode == 404
	case KindTimeout, KindConnectError, KindError, KindInvalid:
		return true
	default:
		return true
	}
}

// Switched reports whether the alternate scheme produced the result.
func (r Result) Switched() bool {
	return r.SwitchedTo != ""
}

// invalidResult is the fixed result for input without an http(s) scheme.
func invalidResult(index int, raw string) Result {
	return Result{
		Index:   index,
		URL:     raw,
		Kind:    KindInvalid,
		Message: MessageInvalid,
	}
}

// resultFromOutcome converts a probe outcome. switchedTo is the alternate
// URL when the outcome came from the retry attempt.
func resultFromOutcome(index int, raw string, out probe.Outcome, switchedTo string) Result {
	res := Result{Index: index, URL: raw, Message: out.Message}

	switch out.Status {
	case probe.StatusOK:
		res.Kind = KindHTTP
		res.StatusCode = out.StatusCode
		res.SwitchedTo = switchedTo
		switch {
		case out.StatusCode == 404:
			res.Message = MessageNotFound
		case switchedTo != "":
			res.Message = fmt.Sprintf("OK (auto-switched: %s)", switchedTo)
		default:
			res.Message = probe.MessageOK
		}
	case probe.StatusTimeout:
		res.Kind = KindTimeout
	case probe.StatusConnectError:
		res.Kind = KindConnectError
	case probe.StatusOtherError:
		res.Kind = KindError
	default:
		res.Kind = KindError
	}

	return res
}
