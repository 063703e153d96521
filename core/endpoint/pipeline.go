package endpoint

import (
	"context"
	"fmt"

	"github.com/artpar/routekit/core/contract"
	"github.com/artpar/routekit/core/service"
)

// Route is an endpoint with its type parameters erased, as seen by
// transports and route tables.
type Route interface {
	Method() string
	Path() string
	Route() string
	Description() string
	Tags() []string
	Services() []service.Provider
	Serve(ctx context.Context, reg *service.Registry, req Request) (Reply, error)
}

var _ Route = (*Endpoint[contract.None, contract.None, contract.None, contract.None])(nil)

// Execute runs the pipeline for one invocation.
//
// Errors are *InputError, *HandlerError, *OutputContractError, or a service
// resolution error wrapping service.ErrServiceNotFound. A denied
// authorization is not an error; it yields Forbidden.
func (e *Endpoint[B, P, S, R]) Execute(ctx context.Context, reg *service.Registry, req Request) (Response[R], error) {
	var zero Response[R]
	route := e.Route()

	in, err := e.validateInput(ctx, req)
	if err != nil {
		return zero, err
	}

	if len(e.services) == 0 {
		in.Services = service.Services{}
	} else {
		if reg == nil {
			return zero, fmt.Errorf("%s: resolve services: %w: no registry", route, service.ErrServiceNotFound)
		}
		services, err := reg.Register(ctx, e.services...)
		if err != nil {
			return zero, fmt.Errorf("%s: resolve services: %w", route, err)
		}
		in.Services = services
	}

	if !e.authorizer(ctx, in) {
		return Forbidden[R](), nil
	}

	resp, err := e.handler(ctx, in)
	if err != nil {
		return zero, &HandlerError{Route: route, Err: err}
	}

	switch resp.Kind() {
	case KindError:
		return resp, nil
	case KindSuccess:
		if e.response == nil {
			return resp, nil
		}
		r := e.response.Validate(ctx, any(resp.Body))
		if !r.OK() {
			return zero, &OutputContractError{Route: route, StatusCode: resp.StatusCode, Issues: r.Issues}
		}
		resp.Body = r.Value
		return resp, nil
	default:
		return zero, &OutputContractError{
			Route:      route,
			StatusCode: resp.StatusCode,
			Issues: contract.Issues{{
				Message: fmt.Sprintf("status code %d is neither a success (2xx) nor an error (4xx, 5xx)", resp.StatusCode),
				Path:    []any{"statusCode"},
			}},
		}
	}
}

// Serve is Execute with the response body erased.
func (e *Endpoint[B, P, S, R]) Serve(ctx context.Context, reg *service.Registry, req Request) (Reply, error) {
	resp, err := e.Execute(ctx, reg, req)
	if err != nil {
		return Reply{}, err
	}
	return resp.Reply(), nil
}

func (e *Endpoint[B, P, S, R]) validateInput(ctx context.Context, req Request) (Input[B, P, S], error) {
	var (
		in       Input[B, P, S]
		failures []SourceIssues
	)

	if r := contract.Validate(ctx, e.params, req.Params); r.OK() {
		in.Params = r.Value
	} else {
		failures = append(failures, SourceIssues{Source: SourceParams, Issues: r.Issues})
	}
	if r := contract.Validate(ctx, e.body, req.Body); r.OK() {
		in.Body = r.Value
	} else {
		failures = append(failures, SourceIssues{Source: SourceBody, Issues: r.Issues})
	}
	if r := contract.Validate(ctx, e.search, req.Search); r.OK() {
		in.Search = r.Value
	} else {
		failures = append(failures, SourceIssues{Source: SourceSearch, Issues: r.Issues})
	}

	if len(failures) > 0 {
		return in, &InputError{Route: e.Route(), Failures: failures}
	}
	return in, nil
}
