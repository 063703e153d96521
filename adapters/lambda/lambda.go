// Package lambda runs a route from API gateway proxy events, one function
// per route.
package lambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/artpar/routekit/core/endpoint"
	"github.com/artpar/routekit/core/routes"
	"github.com/artpar/routekit/core/service"
)

// Event is the subset of an API gateway proxy request the adapter reads.
type Event struct {
	Body                  string            `json:"body"`
	IsBase64Encoded       bool              `json:"isBase64Encoded"`
	PathParameters        map[string]string `json:"pathParameters"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
}

// Result is an API gateway proxy response.
type Result struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}

// Handler adapts one route.
type Handler struct {
	route    endpoint.Route
	registry *service.Registry
	logger   zerolog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for fatal failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// New creates a handler for route.
func New(route endpoint.Route, reg *service.Registry, opts ...Option) *Handler {
	h := &Handler{route: route, registry: reg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With().Str("route", route.Route()).Logger()
	return h
}

// Handle runs the pipeline for ev. Invalid input yields a 400 result;
// every other pipeline failure is returned as an error so the platform
// records the invocation as failed.
func (h *Handler) Handle(ctx context.Context, ev Event) (Result, error) {
	body, err := decodeBody(ev)
	if err != nil {
		return jsonResult(http.StatusBadRequest, endpoint.ErrorBody{Message: "Bad Request"})
	}

	req := endpoint.Request{
		Body:   body,
		Params: stringMap(ev.PathParameters),
		Search: stringMap(ev.QueryStringParameters),
	}

	reply, err := h.route.Serve(ctx, h.registry, req)
	if err != nil {
		if inputErr, ok := endpoint.AsInputError(err); ok {
			return jsonResult(http.StatusBadRequest, map[string]any{
				"message": "Bad Request",
				"issues":  inputErr.Failures,
			})
		}
		h.logger.Error().Err(err).Str("kind", endpoint.FailureKind(err)).Msg("invocation failed")
		return Result{}, err
	}

	if s, ok := reply.Body.(string); ok {
		return Result{
			StatusCode: reply.StatusCode,
			Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
			Body:       s,
		}, nil
	}
	return jsonResult(reply.StatusCode, reply.Body)
}

// decodeBody parses the event body as JSON, falling back to the raw text.
// An absent body is treated as an empty object.
func decodeBody(ev Event) (any, error) {
	raw := ev.Body
	if ev.IsBase64Encoded && raw != "" {
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode base64 body: %w", err)
		}
		raw = string(b)
	}
	if raw == "" {
		raw = "{}"
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw, nil
	}
	return v, nil
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func jsonResult(status int, body any) (Result, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("encode response: %w", err)
	}
	return Result{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}, nil
}

// Functions builds one handler per route, keyed by deployment name
// (e.g. "get_users_id").
func Functions(table *routes.Table, reg *service.Registry, opts ...Option) (map[string]*Handler, error) {
	out := make(map[string]*Handler, table.Len())
	for _, r := range table.List() {
		name, err := routes.DeploymentName(r.Route())
		if err != nil {
			return nil, err
		}
		if _, exists := out[name]; exists {
			return nil, fmt.Errorf("%w: deployment name %q", routes.ErrDuplicateRoute, name)
		}
		out[name] = New(r, reg, opts...)
	}
	return out, nil
}
