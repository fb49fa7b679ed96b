package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an Error with the failure class the HTTP layer reports.
type Kind string

const (
	// KindValidation covers malformed or missing caller input (HTTP 400).
	KindValidation Kind = "VALIDATION"
	// KindConfiguration covers missing deployment configuration (HTTP 500).
	KindConfiguration Kind = "CONFIGURATION"
	// KindUpstream covers non-success responses from the CMS (HTTP 500).
	KindUpstream Kind = "UPSTREAM"
	// KindRender covers headless-browser navigation and print failures (HTTP 500).
	KindRender Kind = "RENDER"
)

// Error is the tagged error type used at every operation boundary. Callers
// branch on Kind instead of parsing message strings.
type Error struct {
	Kind    Kind
	Message string
	// UpstreamStatus and UpstreamBody carry diagnostics for KindUpstream.
	UpstreamStatus int
	UpstreamBody   string
	Err            error
}

func (e *Error) Error() string {
	if e.Kind == KindUpstream && e.UpstreamStatus != 0 {
		return fmt.Sprintf("%s: %d - %s", e.Message, e.UpstreamStatus, e.UpstreamBody)
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation creates a caller-input error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Configuration creates a missing-deployment-configuration error.
func Configuration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// Upstream creates an error carrying the upstream status and body text.
func Upstream(message string, status int, body string) *Error {
	return &Error{Kind: KindUpstream, Message: message, UpstreamStatus: status, UpstreamBody: body}
}

// Render wraps a headless-browser failure.
func Render(message string, cause error) *Error {
	return &Error{Kind: KindRender, Message: message, Err: cause}
}

// KindOf returns the Kind of err, or KindUpstream for untagged errors so that
// unexpected failures still surface as 500s with their message intact.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// HTTPStatus maps an error to the status code the operation returns.
func HTTPStatus(err error) int {
	if KindOf(err) == KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
