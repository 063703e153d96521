package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
)

const (
	msgRequired = "required"
	msgIntRange = "integer out of range"
)

// AnySchema accepts every value unchanged.
type AnySchema struct{}

// Any returns a contract that accepts anything, including null.
func Any() AnySchema { return AnySchema{} }

// Validate implements Contract.
func (AnySchema) Validate(_ context.Context, data any) Result[any] { return Pass(data) }

// ValidateAny implements Schema.
func (AnySchema) ValidateAny(_ context.Context, data any) Result[any] { return Pass(data) }

// StringSchema validates strings with optional length, pattern, and format checks.
type StringSchema struct {
	min, max int
	pattern  *regexp.Regexp
	email    bool
	oneOf    []string
}

// String returns a contract that requires a string value.
func String() *StringSchema {
	return &StringSchema{min: -1, max: -1}
}

// Enum returns a string contract restricted to values.
func Enum(values ...string) *StringSchema {
	s := String()
	s.oneOf = values
	return s
}

// MinLen requires at least n characters.
func (s *StringSchema) MinLen(n int) *StringSchema { s.min = n; return s }

// MaxLen allows at most n characters.
func (s *StringSchema) MaxLen(n int) *StringSchema { s.max = n; return s }

// Pattern requires the value to match expr. It panics on an invalid expression.
func (s *StringSchema) Pattern(expr string) *StringSchema {
	s.pattern = regexp.MustCompile(expr)
	return s
}

// Email requires a valid RFC 5322 address.
func (s *StringSchema) Email() *StringSchema { s.email = true; return s }

// Validate implements Contract.
func (s *StringSchema) Validate(_ context.Context, data any) Result[string] {
	if data == nil {
		return Fail[string](msgRequired)
	}
	str, ok := data.(string)
	if !ok {
		return Fail[string](fmt.Sprintf("expected string, received %s", typeName(data)))
	}

	var issues Issues
	n := len([]rune(str))
	if s.min >= 0 && n < s.min {
		issues = append(issues, Issue{Message: fmt.Sprintf("must be at least %d characters", s.min)})
	}
	if s.max >= 0 && n > s.max {
		issues = append(issues, Issue{Message: fmt.Sprintf("must be at most %d characters", s.max)})
	}
	if s.pattern != nil && !s.pattern.MatchString(str) {
		issues = append(issues, Issue{Message: fmt.Sprintf("must match pattern %s", s.pattern.String())})
	}
	if s.email {
		if _, err := mail.ParseAddress(str); err != nil {
			issues = append(issues, Issue{Message: "invalid email address"})
		}
	}
	if len(s.oneOf) > 0 && !contains(s.oneOf, str) {
		issues = append(issues, Issue{Message: "must be one of: " + strings.Join(s.oneOf, ", ")})
	}
	if len(issues) > 0 {
		return Result[string]{Issues: issues}
	}
	return Pass(str)
}

// ValidateAny implements Schema.
func (s *StringSchema) ValidateAny(ctx context.Context, data any) Result[any] {
	return erase(s.Validate(ctx, data))
}

// IntSchema validates integers. JSON numbers with no fractional part are
// accepted; with Coerce, decimal strings are parsed as well.
type IntSchema struct {
	coerce   bool
	min, max *int64
}

// Int returns a contract that requires an integer.
func Int() *IntSchema { return &IntSchema{} }

// CoerceInt returns an integer contract that also accepts decimal strings,
// as path and query parameters always arrive as text.
func CoerceInt() *IntSchema { return &IntSchema{coerce: true} }

// Min sets an inclusive lower bound.
func (s *IntSchema) Min(n int64) *IntSchema { s.min = &n; return s }

// Max sets an inclusive upper bound.
func (s *IntSchema) Max(n int64) *IntSchema { s.max = &n; return s }

// Validate implements Contract.
func (s *IntSchema) Validate(_ context.Context, data any) Result[int64] {
	if data == nil {
		return Fail[int64](msgRequired)
	}
	n, msg := toInt(data, s.coerce)
	if msg != "" {
		return Fail[int64](msg)
	}
	if s.min != nil && n < *s.min {
		return Fail[int64](fmt.Sprintf("must be >= %d", *s.min))
	}
	if s.max != nil && n > *s.max {
		return Fail[int64](fmt.Sprintf("must be <= %d", *s.max))
	}
	return Pass(n)
}

// ValidateAny implements Schema.
func (s *IntSchema) ValidateAny(ctx context.Context, data any) Result[any] {
	return erase(s.Validate(ctx, data))
}

// toInt returns the integer or the issue message describing why data is not one.
func toInt(data any, coerce bool) (int64, string) {
	notInt := fmt.Sprintf("expected integer, received %s", typeName(data))
	switch v := data.(type) {
	case int:
		return int64(v), ""
	case int32:
		return int64(v), ""
	case int64:
		return v, ""
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, notInt
		}
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if v >= float64(math.MaxInt64) || v < float64(math.MinInt64) {
			return 0, msgIntRange
		}
		return int64(v), ""
	case json.Number:
		n, err := v.Int64()
		if errors.Is(err, strconv.ErrRange) {
			return 0, msgIntRange
		}
		if err != nil {
			return 0, notInt
		}
		return n, ""
	case string:
		if !coerce {
			return 0, notInt
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, msgIntRange
		}
		if err != nil {
			return 0, notInt
		}
		return n, ""
	}
	return 0, notInt
}

// NumberSchema validates floating point numbers.
type NumberSchema struct{}

// Number returns a contract that requires a number.
func Number() NumberSchema { return NumberSchema{} }

// Validate implements Contract.
func (NumberSchema) Validate(_ context.Context, data any) Result[float64] {
	switch v := data.(type) {
	case nil:
		return Fail[float64](msgRequired)
	case float64:
		return Pass(v)
	case float32:
		return Pass(float64(v))
	case int:
		return Pass(float64(v))
	case int64:
		return Pass(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return Pass(f)
		}
	}
	return Fail[float64](fmt.Sprintf("expected number, received %s", typeName(data)))
}

// ValidateAny implements Schema.
func (s NumberSchema) ValidateAny(ctx context.Context, data any) Result[any] {
	return erase(s.Validate(ctx, data))
}

// BoolSchema validates booleans.
type BoolSchema struct {
	coerce bool
}

// Bool returns a contract that requires a boolean.
func Bool() BoolSchema { return BoolSchema{} }

// CoerceBool also accepts "true"/"false"/"1"/"0".
func CoerceBool() BoolSchema { return BoolSchema{coerce: true} }

// Validate implements Contract.
func (s BoolSchema) Validate(_ context.Context, data any) Result[bool] {
	switch v := data.(type) {
	case nil:
		return Fail[bool](msgRequired)
	case bool:
		return Pass(v)
	case string:
		if s.coerce {
			if b, err := strconv.ParseBool(v); err == nil {
				return Pass(b)
			}
		}
	}
	return Fail[bool](fmt.Sprintf("expected boolean, received %s", typeName(data)))
}

// ValidateAny implements Schema.
func (s BoolSchema) ValidateAny(ctx context.Context, data any) Result[any] {
	return erase(s.Validate(ctx, data))
}

// OptionalSchema lets null or missing values through unchanged.
type OptionalSchema struct {
	inner Schema
}

// Optional makes inner accept a missing value.
func Optional(inner Schema) OptionalSchema {
	return OptionalSchema{inner: inner}
}

// Validate implements Contract.
func (o OptionalSchema) Validate(ctx context.Context, data any) Result[any] {
	if data == nil {
		return Pass[any](nil)
	}
	return o.inner.ValidateAny(ctx, data)
}

// ValidateAny implements Schema.
func (o OptionalSchema) ValidateAny(ctx context.Context, data any) Result[any] {
	return o.Validate(ctx, data)
}

// ArraySchema validates every element of a list.
type ArraySchema struct {
	elem Schema
}

// ArrayOf returns a contract for a list whose elements satisfy elem.
func ArrayOf(elem Schema) ArraySchema {
	return ArraySchema{elem: elem}
}

// Validate implements Contract. All elements are checked; issues carry the index.
func (a ArraySchema) Validate(ctx context.Context, data any) Result[[]any] {
	if data == nil {
		return Fail[[]any](msgRequired)
	}
	list, ok := data.([]any)
	if !ok {
		if _, isStr := data.(string); !isStr {
			list, ok = normalize(data).([]any)
		}
		if !ok {
			return Fail[[]any](fmt.Sprintf("expected array, received %s", typeName(data)))
		}
	}

	out := make([]any, len(list))
	var issues Issues
	for i, el := range list {
		r := a.elem.ValidateAny(ctx, el)
		if !r.OK() {
			issues = append(issues, r.Issues.Prefix(i)...)
			continue
		}
		out[i] = r.Value
	}
	if len(issues) > 0 {
		return Result[[]any]{Issues: issues}
	}
	return Pass(out)
}

// ValidateAny implements Schema.
func (a ArraySchema) ValidateAny(ctx context.Context, data any) Result[any] {
	return erase(a.Validate(ctx, data))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
