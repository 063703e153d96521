// Package endpoint defines typed request handlers and the pipeline that runs
// them.
//
// An Endpoint pairs a route (method + path) with optional contracts for the
// request body, path parameters, query parameters ("search"), and response
// body, a list of service providers, an optional authorization predicate,
// and a handler. Execute runs the fixed pipeline:
//
//  1. validate params, body, and search
//  2. resolve declared services through the registry, in declaration order
//  3. evaluate the authorization gate (deny yields a 403 "Forbidden" response)
//  4. invoke the handler exactly once
//  5. pass error responses through; validate success bodies against the
//     response contract and substitute the validated value
//
// Each stage completes before the next begins. The pipeline does not watch
// ctx for cancellation; ctx is handed to producers, the authorizer, and the
// handler.
package endpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/artpar/routekit/core/contract"
	"github.com/artpar/routekit/core/service"
)

// Supported HTTP methods.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
	MethodPatch  = "PATCH"
)

var methods = map[string]bool{
	MethodGet:    true,
	MethodPost:   true,
	MethodPut:    true,
	MethodDelete: true,
	MethodPatch:  true,
}

// Request is the raw data a transport extracted from an invocation.
type Request struct {
	Body   any
	Params any
	Search any
}

// Input is what the authorizer and handler receive after validation and
// service resolution.
type Input[B, P, S any] struct {
	Body     B
	Params   P
	Search   S
	Services service.Services
}

// Handler produces the response for a validated request.
type Handler[B, P, S, R any] func(ctx context.Context, in Input[B, P, S]) (Response[R], error)

// Authorizer decides whether a validated request may reach the handler.
type Authorizer[B, P, S any] func(ctx context.Context, in Input[B, P, S]) bool

// Options declares an endpoint. Nil contracts mean "no constraint".
type Options[B, P, S, R any] struct {
	// Method is one of GET, POST, PUT, DELETE, PATCH (case-insensitive).
	Method string
	// Path must start with "/". Parameters use ":name" segments, e.g. /users/:id.
	Path        string
	Description string
	Tags        []string

	Body     contract.Contract[B]
	Params   contract.Contract[P]
	Search   contract.Contract[S]
	Response contract.Contract[R]

	Services     []service.Provider
	IsAuthorized Authorizer[B, P, S]
	Handler      Handler[B, P, S, R]
}

// Endpoint is an immutable, validated endpoint declaration.
type Endpoint[B, P, S, R any] struct {
	method      string
	path        string
	description string
	tags        []string

	body     contract.Contract[B]
	params   contract.Contract[P]
	search   contract.Contract[S]
	response contract.Contract[R]

	services   []service.Provider
	authorizer Authorizer[B, P, S]
	handler    Handler[B, P, S, R]
}

// Build validates opts and returns the endpoint.
func Build[B, P, S, R any](opts Options[B, P, S, R]) (*Endpoint[B, P, S, R], error) {
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if !methods[method] {
		return nil, fmt.Errorf("endpoint %s %s: unsupported method %q", opts.Method, opts.Path, opts.Method)
	}
	if !strings.HasPrefix(opts.Path, "/") {
		return nil, fmt.Errorf("endpoint %s %s: path must start with /", method, opts.Path)
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("endpoint %s %s: handler is required", method, opts.Path)
	}

	authorizer := opts.IsAuthorized
	if authorizer == nil {
		authorizer = func(context.Context, Input[B, P, S]) bool { return true }
	}

	return &Endpoint[B, P, S, R]{
		method:      method,
		path:        opts.Path,
		description: opts.Description,
		tags:        append([]string(nil), opts.Tags...),
		body:        opts.Body,
		params:      opts.Params,
		search:      opts.Search,
		response:    opts.Response,
		services:    append([]service.Provider(nil), opts.Services...),
		authorizer:  authorizer,
		handler:     opts.Handler,
	}, nil
}

// New is Build for package-level declarations; it panics on invalid options.
func New[B, P, S, R any](opts Options[B, P, S, R]) *Endpoint[B, P, S, R] {
	e, err := Build(opts)
	if err != nil {
		panic(err)
	}
	return e
}

// Method returns the upper-case HTTP method.
func (e *Endpoint[B, P, S, R]) Method() string { return e.method }

// Path returns the declared path.
func (e *Endpoint[B, P, S, R]) Path() string { return e.path }

// Route returns the route identity, "METHOD /path".
func (e *Endpoint[B, P, S, R]) Route() string { return e.method + " " + e.path }

// Description returns the human readable summary.
func (e *Endpoint[B, P, S, R]) Description() string { return e.description }

// Tags returns the documentation tags.
func (e *Endpoint[B, P, S, R]) Tags() []string { return append([]string(nil), e.tags...) }

// Services returns the declared service providers.
func (e *Endpoint[B, P, S, R]) Services() []service.Provider {
	return append([]service.Provider(nil), e.services...)
}

// ParseParams validates path parameters.
func (e *Endpoint[B, P, S, R]) ParseParams(ctx context.Context, data any) (P, error) {
	return parseInput(ctx, e.Route(), SourceParams, e.params, data)
}

// ParseBody validates the request body.
func (e *Endpoint[B, P, S, R]) ParseBody(ctx context.Context, data any) (B, error) {
	return parseInput(ctx, e.Route(), SourceBody, e.body, data)
}

// ParseSearch validates query parameters.
func (e *Endpoint[B, P, S, R]) ParseSearch(ctx context.Context, data any) (S, error) {
	return parseInput(ctx, e.Route(), SourceSearch, e.search, data)
}

// ParseResponse validates a response body against the response contract.
// Without a contract the data is returned unchanged when it already has
// type R, and as the zero value otherwise.
func (e *Endpoint[B, P, S, R]) ParseResponse(ctx context.Context, data any) (R, error) {
	if e.response == nil {
		v, _ := data.(R)
		return v, nil
	}
	r := e.response.Validate(ctx, data)
	if !r.OK() {
		var zero R
		return zero, &OutputContractError{Route: e.Route(), StatusCode: 0, Issues: r.Issues}
	}
	return r.Value, nil
}

func parseInput[T any](ctx context.Context, route string, src Source, c contract.Contract[T], data any) (T, error) {
	r := contract.Validate(ctx, c, data)
	if !r.OK() {
		var zero T
		return zero, &InputError{Route: route, Failures: []SourceIssues{{Source: src, Issues: r.Issues}}}
	}
	return r.Value, nil
}
