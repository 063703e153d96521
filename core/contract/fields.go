package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Fields is the object shorthand: each key maps to its own validator.
// Every field is examined before the result is reported; issues carry the
// field key as the first path segment. Keys not listed are dropped.
type Fields map[string]Schema

// Validate checks data field by field.
func (f Fields) Validate(ctx context.Context, data any) Result[map[string]any] {
	obj, ok := asObject(data)
	if !ok {
		return Fail[map[string]any](fmt.Sprintf("expected object, received %s", typeName(data)))
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(f))
	var issues Issues
	for _, k := range keys {
		raw, present := obj[k]
		r := f[k].ValidateAny(ctx, raw)
		if !r.OK() {
			issues = append(issues, r.Issues.Prefix(k)...)
			continue
		}
		if present || r.Value != nil {
			out[k] = r.Value
		}
	}
	if len(issues) > 0 {
		return Result[map[string]any]{Issues: issues}
	}
	return Pass(out)
}

// ValidateAny implements Schema.
func (f Fields) ValidateAny(ctx context.Context, data any) Result[any] {
	return erase(f.Validate(ctx, data))
}

func asObject(data any) (map[string]any, bool) {
	switch v := data.(type) {
	case map[string]any:
		return v, true
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return m, true
	case nil, string, bool, float64, []any:
		return nil, false
	default:
		m, ok := normalize(v).(map[string]any)
		return m, ok
	}
}

// normalize converts Go values (structs, typed slices, typed maps) into the
// generic JSON shapes validators understand.
func normalize(data any) any {
	b, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return data
	}
	return out
}

// ObjectSchema validates an object with Fields and decodes it into T.
type ObjectSchema[T any] struct {
	fields Fields
}

// Object builds a typed object contract. T is populated from the validated
// field map using its json tags.
func Object[T any](fields Fields) *ObjectSchema[T] {
	return &ObjectSchema[T]{fields: fields}
}

// Validate implements Contract.
func (o *ObjectSchema[T]) Validate(ctx context.Context, data any) Result[T] {
	r := o.fields.Validate(ctx, data)
	if !r.OK() {
		return Result[T]{Issues: r.Issues}
	}
	var out T
	if err := decode(r.Value, &out); err != nil {
		return Fail[T](fmt.Sprintf("cannot decode object: %v", err))
	}
	return Pass(out)
}

// ValidateAny implements Schema.
func (o *ObjectSchema[T]) ValidateAny(ctx context.Context, data any) Result[any] {
	return erase(o.Validate(ctx, data))
}

func decode(in any, out any) error {
	if m, ok := out.(*map[string]any); ok {
		if v, ok := in.(map[string]any); ok {
			*m = v
			return nil
		}
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
