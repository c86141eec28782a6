package services

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Normalize coerces any value, including nil, into a string. It never panics and
// is the only place raw request fields are turned into text.
func Normalize(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case error:
		return guarded(v.Error)
	case fmt.Stringer:
		return guarded(v.String)
	default:
		return fmt.Sprint(v)
	}
}

// guarded calls fn and maps a panic (typed-nil receiver) to ""
func guarded(fn func() string) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()
	return fn()
}

// NormalizeLinks coerces a link collection into a string slice. nil and
// non-collection values yield an empty slice.
func NormalizeLinks(value any) []string {
	switch v := value.(type) {
	case nil:
		return []string{}
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = Normalize(item)
		}
		return out
	default:
		return []string{}
	}
}
