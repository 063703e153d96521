package endpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/routekit/core/contract"
	"github.com/artpar/routekit/core/service"
)

var (
	// ErrInvalidInput marks a request whose body, params, or search failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOutputContract marks a handler response that violates its own response contract.
	ErrOutputContract = errors.New("output contract violation")
	// ErrHandler marks an error returned by a handler.
	ErrHandler = errors.New("handler failed")
)

// Source names the part of a request an input issue came from.
type Source string

// Request parts, in validation order.
const (
	SourceParams Source = "params"
	SourceBody   Source = "body"
	SourceSearch Source = "search"
)

// SourceIssues groups the issues found in one request part.
type SourceIssues struct {
	Source Source          `json:"source"`
	Issues contract.Issues `json:"issues"`
}

// InputError reports every failing request part. Paths are relative to
// their part, e.g. a missing body field "a" has path ["a"].
type InputError struct {
	Route    string
	Failures []SourceIssues
}

func (e *InputError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %s", f.Source, f.Issues.Error())
	}
	msg := "invalid input: " + strings.Join(parts, "; ")
	if e.Route != "" {
		return e.Route + ": " + msg
	}
	return msg
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Issues flattens the failures in validation order.
func (e *InputError) Issues() contract.Issues {
	var out contract.Issues
	for _, f := range e.Failures {
		out = append(out, f.Issues...)
	}
	return out
}

// OutputContractError reports a success response whose body failed the
// response contract, or a status code outside both response ranges.
type OutputContractError struct {
	Route      string
	StatusCode int
	Issues     contract.Issues
}

func (e *OutputContractError) Error() string {
	return fmt.Sprintf("%s: output contract violation (status %d): %s", e.Route, e.StatusCode, e.Issues.Error())
}

func (e *OutputContractError) Unwrap() error { return ErrOutputContract }

// HandlerError wraps an error returned by a handler.
type HandlerError struct {
	Route string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: handler: %v", e.Route, e.Err)
}

func (e *HandlerError) Unwrap() []error { return []error{ErrHandler, e.Err} }

// AsInputError returns the request validation failure in err. Errors a
// handler returned are handler failures even when they wrap an InputError.
func AsInputError(err error) (*InputError, bool) {
	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return nil, false
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return inputErr, true
	}
	return nil, false
}

// FailureKind names the category of a pipeline failure for logs and metrics.
// A HandlerError is "handler" whatever it wraps.
func FailureKind(err error) string {
	var handlerErr *HandlerError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &handlerErr):
		return "handler"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, service.ErrServiceNotFound):
		return "service_not_found"
	case errors.Is(err, ErrOutputContract):
		return "output_contract"
	case errors.Is(err, ErrHandler):
		return "handler"
	default:
		return "internal"
	}
}
