// Package policy compiles boolean expressions into endpoint authorizers.
//
// Expressions use expr-lang syntax and see four variables: body, params,
// search, and services. Typed inputs are exposed by their JSON field names,
// so a search struct with `json:"admin"` is read as search.admin.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"github.com/artpar/routekit/core/endpoint"
)

// Policy is a compiled authorization expression.
type Policy[B, P, S any] struct {
	source  string
	program *vm.Program
	logger  zerolog.Logger
}

// Option configures a Policy.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger logs evaluation failures at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Compile compiles expression. The expression must evaluate to a bool.
func Compile[B, P, S any](expression string, opts ...Option) (*Policy[B, P, S], error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	compileOpts := append([]expr.Option{expr.Env(emptyEnv()), expr.AsBool()}, functions...)
	program, err := expr.Compile(expression, compileOpts...)
	if err != nil {
		return nil, fmt.Errorf("compile policy %q: %w", expression, err)
	}
	return &Policy[B, P, S]{source: expression, program: program, logger: o.logger}, nil
}

// MustCompile is Compile for package-level policies.
func MustCompile[B, P, S any](expression string, opts ...Option) *Policy[B, P, S] {
	p, err := Compile[B, P, S](expression, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source expression.
func (p *Policy[B, P, S]) String() string { return p.source }

// Allow evaluates the policy. Evaluation errors deny.
func (p *Policy[B, P, S]) Allow(ctx context.Context, in endpoint.Input[B, P, S]) bool {
	env := map[string]any{
		"body":     generic(in.Body),
		"params":   generic(in.Params),
		"search":   generic(in.Search),
		"services": map[string]any(in.Services),
	}
	out, err := expr.Run(p.program, env)
	if err != nil {
		p.logger.Debug().Err(err).Str("policy", p.source).Msg("policy evaluation failed")
		return false
	}
	allowed, ok := out.(bool)
	return ok && allowed
}

// Authorizer returns Allow as an endpoint.Authorizer.
func (p *Policy[B, P, S]) Authorizer() endpoint.Authorizer[B, P, S] {
	return p.Allow
}

// All allows only when every authorizer allows. It stops at the first deny.
func All[B, P, S any](authorizers ...endpoint.Authorizer[B, P, S]) endpoint.Authorizer[B, P, S] {
	return func(ctx context.Context, in endpoint.Input[B, P, S]) bool {
		for _, a := range authorizers {
			if !a(ctx, in) {
				return false
			}
		}
		return true
	}
}

// Any allows when at least one authorizer allows.
func Any[B, P, S any](authorizers ...endpoint.Authorizer[B, P, S]) endpoint.Authorizer[B, P, S] {
	return func(ctx context.Context, in endpoint.Input[B, P, S]) bool {
		for _, a := range authorizers {
			if a(ctx, in) {
				return true
			}
		}
		return false
	}
}

func emptyEnv() map[string]any {
	return map[string]any{
		"body":     map[string]any{},
		"params":   map[string]any{},
		"search":   map[string]any{},
		"services": map[string]any{},
	}
}

// generic converts typed inputs to the map shape expressions index into.
func generic(v any) any {
	switch v.(type) {
	case nil, map[string]any, string, bool, float64, int, int64:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

var functions = []expr.Option{
	expr.Function("lower", func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("lower requires 1 argument")
		}
		return strings.ToLower(fmt.Sprint(params[0])), nil
	}),
	expr.Function("hasPrefix", func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("hasPrefix requires 2 arguments")
		}
		return strings.HasPrefix(fmt.Sprint(params[0]), fmt.Sprint(params[1])), nil
	}),
}
