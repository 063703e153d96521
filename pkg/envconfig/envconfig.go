// Package envconfig reads typed settings from the process environment in
// two phases: declare every field, then parse them all at once so a single
// error lists every missing or malformed variable.
package envconfig

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/artpar/routekit/core/contract"
)

// LookupFunc returns the raw value of an environment variable.
type LookupFunc func(name string) (string, bool)

type field struct {
	key    string
	env    string
	schema contract.Schema
}

// Builder collects field declarations.
type Builder struct {
	fields []field
	lookup LookupFunc
}

// New returns an empty builder that reads os.LookupEnv.
func New() *Builder {
	return &Builder{lookup: os.LookupEnv}
}

// WithLookup replaces the environment source.
func (b *Builder) WithLookup(lookup LookupFunc) *Builder {
	b.lookup = lookup
	return b
}

// Field declares key, read from env and validated by schema. A missing
// variable is validated as nil, so wrap optional fields in
// contract.Optional.
func (b *Builder) Field(key, env string, schema contract.Schema) *Builder {
	b.fields = append(b.fields, field{key: key, env: env, schema: schema})
	return b
}

// Parse reads and validates every declared field.
func (b *Builder) Parse(ctx context.Context) (Values, error) {
	lookup := b.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	values := make(Values, len(b.fields))
	var issues contract.Issues
	for _, f := range b.fields {
		var raw any
		if v, ok := lookup(f.env); ok {
			raw = v
		}
		if f.schema == nil {
			if raw != nil {
				values[f.key] = raw
			}
			continue
		}
		r := f.schema.ValidateAny(ctx, raw)
		if !r.OK() {
			issues = append(issues, r.Issues.Prefix(f.key)...)
			continue
		}
		if r.Value != nil {
			values[f.key] = r.Value
		}
	}
	if len(issues) > 0 {
		return nil, &Error{Issues: issues}
	}
	return values, nil
}

// Error lists every invalid field.
type Error struct {
	Issues contract.Issues
}

func (e *Error) Error() string {
	return "invalid environment: " + e.Issues.Error()
}

// Values holds parsed settings by key.
type Values map[string]any

// Has reports whether key was set.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// String returns key as a string, or "" when absent.
func (v Values) String(key string) string {
	switch x := v[key].(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Int returns key as an int, or 0 when absent or not integral.
func (v Values) Int(key string) int {
	switch x := v[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}

// Bool returns key as a bool, or false when absent.
func (v Values) Bool(key string) bool {
	b, _ := v[key].(bool)
	return b
}

// Duration returns key as a time.Duration, or 0 when absent.
func (v Values) Duration(key string) time.Duration {
	d, _ := v[key].(time.Duration)
	return d
}

// Duration is a schema for Go duration strings such as "30s".
func Duration() contract.Func[time.Duration] {
	return func(_ context.Context, data any) contract.Result[time.Duration] {
		switch x := data.(type) {
		case nil:
			return contract.Fail[time.Duration]("required")
		case time.Duration:
			return contract.Pass(x)
		case string:
			d, err := time.ParseDuration(x)
			if err != nil {
				return contract.Fail[time.Duration](fmt.Sprintf("invalid duration %q", x))
			}
			return contract.Pass(d)
		default:
			return contract.Fail[time.Duration](fmt.Sprintf("expected duration, received %T", data))
		}
	}
}
