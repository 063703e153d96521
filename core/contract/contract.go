// Package contract normalizes validators behind a single operation used for
// request bodies, path parameters, query parameters, and response bodies.
//
// A Contract never panics on malformed input; failures are returned as an
// ordered list of Issues inside the Result. A nil Contract means "no
// constraint" and always yields the zero value of its type.
package contract

import (
	"context"
)

// None is the value type for inputs an endpoint does not declare.
type None = struct{}

// Result is the outcome of a validation: either Value or a non-empty Issues.
type Result[T any] struct {
	Value  T
	Issues Issues
}

// OK reports whether validation succeeded.
func (r Result[T]) OK() bool {
	return len(r.Issues) == 0
}

// Err returns the issues as an error, or nil on success.
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	return r.Issues
}

// Contract validates untyped data into a T.
type Contract[T any] interface {
	Validate(ctx context.Context, data any) Result[T]
}

// Schema is the type-erased form used for per-field validators.
type Schema interface {
	ValidateAny(ctx context.Context, data any) Result[any]
}

// Validate runs c against data. A nil contract succeeds with the zero value.
func Validate[T any](ctx context.Context, c Contract[T], data any) Result[T] {
	if c == nil {
		return Result[T]{}
	}
	return c.Validate(ctx, data)
}

// Pass returns a successful result.
func Pass[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail returns a failed result with a single issue.
func Fail[T any](message string, path ...any) Result[T] {
	return Result[T]{Issues: Issues{{Message: message, Path: path}}}
}

// Func adapts a plain function to a Contract.
type Func[T any] func(ctx context.Context, data any) Result[T]

// Validate calls f.
func (f Func[T]) Validate(ctx context.Context, data any) Result[T] {
	return f(ctx, data)
}

// ValidateAny calls f and erases the value type.
func (f Func[T]) ValidateAny(ctx context.Context, data any) Result[any] {
	return erase(f(ctx, data))
}

// Erase wraps a typed contract so it can be used inside Fields.
func Erase[T any](c Contract[T]) Schema {
	if s, ok := c.(Schema); ok {
		return s
	}
	return erased[T]{c: c}
}

type erased[T any] struct {
	c Contract[T]
}

func (e erased[T]) ValidateAny(ctx context.Context, data any) Result[any] {
	return erase(e.c.Validate(ctx, data))
}

func erase[T any](r Result[T]) Result[any] {
	if !r.OK() {
		return Result[any]{Issues: r.Issues}
	}
	return Result[any]{Value: r.Value}
}
