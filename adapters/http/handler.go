// Package http binds a route table to a chi router.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/routekit/adapters/metrics"
	"github.com/artpar/routekit/core/endpoint"
	"github.com/artpar/routekit/core/service"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 10 << 20

// BadRequestBody is the wire shape of a 400 response caused by invalid input.
type BadRequestBody struct {
	Message string      `json:"message"`
	Issues  []IssueBody `json:"issues"`
}

// IssueBody is one validation issue.
type IssueBody struct {
	Source  endpoint.Source `json:"source"`
	Message string          `json:"message"`
	Path    []any           `json:"path"`
}

// RouteHandler serves one endpoint.
type RouteHandler struct {
	route    endpoint.Route
	registry *service.Registry
	logger   zerolog.Logger
	metrics  *metrics.Collector
}

// NewRouteHandler creates a handler for route. m may be nil.
func NewRouteHandler(route endpoint.Route, reg *service.Registry, logger zerolog.Logger, m *metrics.Collector) *RouteHandler {
	return &RouteHandler{
		route:    route,
		registry: reg,
		logger:   logger.With().Str("route", route.Route()).Logger(),
		metrics:  m,
	}
}

// ServeHTTP extracts the request, runs the pipeline, and writes the reply.
func (h *RouteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := extractRequest(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, endpoint.ErrorBody{Message: "Request Entity Too Large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, endpoint.ErrorBody{Message: "Bad Request"})
		return
	}

	reply, err := h.route.Serve(r.Context(), h.registry, req)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	if h.metrics != nil && reply.StatusCode == http.StatusForbidden && reply.Body == (endpoint.ErrorBody{Message: "Forbidden"}) {
		h.metrics.ObserveForbidden(h.route.Route())
	}
	writeReply(w, reply)
}

func (h *RouteHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := endpoint.FailureKind(err)
	if h.metrics != nil {
		h.metrics.ObserveFailure(h.route.Route(), kind)
	}

	if inputErr, ok := endpoint.AsInputError(err); ok {
		h.logger.Debug().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("invalid input")
		writeJSON(w, http.StatusBadRequest, BadRequestBody{
			Message: "Bad Request",
			Issues:  issueBodies(inputErr),
		})
		return
	}

	h.logger.Error().
		Err(err).
		Str("kind", kind).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, endpoint.ErrorBody{Message: "Internal Server Error"})
}

func issueBodies(e *endpoint.InputError) []IssueBody {
	var out []IssueBody
	for _, f := range e.Failures {
		for _, issue := range f.Issues {
			path := issue.Path
			if path == nil {
				path = []any{}
			}
			out = append(out, IssueBody{Source: f.Source, Message: issue.Message, Path: path})
		}
	}
	return out
}

// extractRequest reads body, path parameters, and query parameters.
// Empty or malformed JSON bodies become nil and are left to the body contract.
func extractRequest(w http.ResponseWriter, r *http.Request) (endpoint.Request, error) {
	var req endpoint.Request

	if r.Body != nil {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			return req, err
		}
		req.Body = decodeBody(data)
	}

	params := map[string]any{}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			params[key] = rctx.URLParams.Values[i]
		}
	}
	req.Params = params

	search := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			search[key] = values[0]
		}
	}
	req.Search = search

	return req, nil
}

func decodeBody(data []byte) any {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return v
}

// writeReply writes string bodies as text and everything else as JSON.
func writeReply(w http.ResponseWriter, reply endpoint.Reply) {
	if reply.StatusCode == http.StatusNoContent {
		w.WriteHeader(reply.StatusCode)
		return
	}
	if s, ok := reply.Body.(string); ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(reply.StatusCode)
		io.WriteString(w, s)
		return
	}
	writeJSON(w, reply.StatusCode, reply.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// ToChiPath converts ":name" segments to chi's "{name}" form.
func ToChiPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// LoggingMiddleware logs every request at debug level, except health and
// metrics scrapes.
func LoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == metricsPath {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// MetricsMiddleware records request counts, durations, and in-flight
// requests, labelled by the matched route pattern.
func MetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == metricsPath {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			m.ObserveRequest(r.Method, routePattern(r), ww.Status(), time.Since(start))
		})
	}
}

// routePattern returns the matched chi pattern, keeping label cardinality
// bounded for unmatched paths.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
