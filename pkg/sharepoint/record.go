package sharepoint

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/praetorian-inc/sharecrawl/pkg/enum"
)

// Record gives typed access to a decoded REST object. Every accessor
// returns ok=false when the key is missing, null or of the wrong type.
type Record enum.Payload

// String returns the string value of key.
func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// Text returns the string value of key or "".
func (r Record) Text(key string) string {
	s, _ := r.String(key)
	return s
}

// Int returns key as an integer. SharePoint serializes some numbers (file
// lengths, permission masks) as strings, which are parsed.
func (r Record) Int(key string) (int64, bool) {
	switch v := r[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Bool returns the boolean value of key.
func (r Record) Bool(key string) (bool, bool) {
	b, ok := r[key].(bool)
	return b, ok
}

// Time parses key as an ISO-8601 timestamp.
func (r Record) Time(key string) (time.Time, bool) {
	s, ok := r.String(key)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Object returns the nested object at key. Deferred objects (only a
// "__deferred" key) count as absent.
func (r Record) Object(key string) (Record, bool) {
	var obj Record
	switch v := r[key].(type) {
	case map[string]any:
		obj = Record(v)
	case enum.Payload:
		obj = Record(v)
	case Record:
		obj = v
	default:
		return nil, false
	}
	if _, deferred := obj["__deferred"]; deferred && len(obj) == 1 {
		return nil, false
	}
	if len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

// List returns the objects of the array at key. Verbose payloads wrap
// arrays as {"results": [...]}, which is unwrapped.
func (r Record) List(key string) ([]Record, bool) {
	raw, ok := r[key].([]any)
	if !ok {
		nested, isObj := r.Object(key)
		if !isObj {
			return nil, false
		}
		raw, ok = nested["results"].([]any)
		if !ok {
			return nil, false
		}
	}
	out := make([]Record, 0, len(raw))
	for _, v := range raw {
		if m, isMap := v.(map[string]any); isMap {
			out = append(out, Record(m))
		}
	}
	return out, true
}

// ID returns the "Id" of the record formatted as a string.
func (r Record) ID() (string, bool) {
	if s, ok := r.String("Id"); ok {
		return s, true
	}
	if n, ok := r.Int("Id"); ok {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}
