package contract

import (
	"fmt"
	"strings"
)

// Issue is a single validation failure.
type Issue struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// PathString renders the path as dotted segments, e.g. "users.0.name".
func (i Issue) PathString() string {
	parts := make([]string, len(i.Path))
	for n, p := range i.Path {
		parts[n] = fmt.Sprint(p)
	}
	return strings.Join(parts, ".")
}

func (i Issue) String() string {
	if len(i.Path) == 0 {
		return i.Message
	}
	return i.PathString() + ": " + i.Message
}

// Issues is an ordered list of validation failures.
type Issues []Issue

func (is Issues) Error() string {
	msgs := make([]string, len(is))
	for n, i := range is {
		msgs[n] = i.String()
	}
	return strings.Join(msgs, "; ")
}

// Prefix returns a copy of the issues with key prepended to every path.
func (is Issues) Prefix(key any) Issues {
	out := make(Issues, len(is))
	for n, i := range is {
		path := make([]any, 0, len(i.Path)+1)
		path = append(path, key)
		path = append(path, i.Path...)
		out[n] = Issue{Message: i.Message, Path: path}
	}
	return out
}

// typeName describes data the way a JSON reader would.
func typeName(data any) string {
	switch data.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "number"
	case map[string]any, map[string]string:
		return "object"
	case []any, []string:
		return "array"
	default:
		return fmt.Sprintf("%T", data)
	}
}
