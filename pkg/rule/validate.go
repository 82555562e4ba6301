package rule

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/praetorian-inc/sharecrawl/pkg/types"
)

// PatternKey is the only key an advanced rule object may carry.
const PatternKey = "pattern"

// Result is the outcome of validating an advanced rule-set.
type Result struct {
	Valid   bool
	Message string
	Rules   []types.Rule
}

// Err returns a *types.ValidationError for an invalid result, nil otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &types.ValidationError{Field: "advanced_rules", Message: r.Message}
}

func valid(rules []types.Rule) Result {
	return Result{Valid: true, Rules: rules}
}

func invalid(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// Validate checks a decoded rule-set. Accepted shapes are nil, an empty
// list, an empty mapping, a list of {"pattern": "<glob>"} objects, or a
// single {"pattern": "<glob>"} mapping, which is treated as a one-element
// list. Validate never panics on unexpected input.
func Validate(raw any) Result {
	switch v := raw.(type) {
	case nil:
		return valid(nil)
	case []types.Rule:
		objects := make([]any, 0, len(v))
		for _, r := range v {
			objects = append(objects, map[string]any{PatternKey: r.Pattern})
		}
		return validateList(objects)
	case []any:
		return validateList(v)
	case []map[string]any:
		objects := make([]any, 0, len(v))
		for _, m := range v {
			objects = append(objects, m)
		}
		return validateList(objects)
	case map[string]any, map[any]any:
		obj, _ := normalizeObject(v)
		if len(obj) == 0 {
			return valid(nil)
		}
		return validateList([]any{obj})
	default:
		return invalid("advanced rules must be a list of objects, got %T", raw)
	}
}

func validateList(objects []any) Result {
	if len(objects) == 0 {
		return valid(nil)
	}

	rules := make([]types.Rule, 0, len(objects))
	for i, o := range objects {
		obj, ok := normalizeObject(o)
		if !ok {
			return invalid("rule %d: expected an object, got %T", i, o)
		}

		var extra []string
		for key := range obj {
			if key != PatternKey {
				extra = append(extra, key)
			}
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			return invalid("rule %d: unrecognized keys %q (only %q is allowed)", i, extra, PatternKey)
		}

		value, present := obj[PatternKey]
		if !present {
			return invalid("rule %d: missing required key %q", i, PatternKey)
		}
		pattern, isString := value.(string)
		if !isString {
			return invalid("rule %d: %q must be a string, got %T", i, PatternKey, value)
		}
		if pattern == "" {
			return invalid("rule %d: %q must not be empty", i, PatternKey)
		}
		rules = append(rules, types.Rule{Pattern: pattern})
	}

	var leading []string
	for _, r := range rules {
		if strings.HasPrefix(r.Pattern, "/") || strings.HasPrefix(r.Pattern, `\`) {
			leading = append(leading, r.Pattern)
		}
	}
	if len(leading) > 0 {
		return invalid("path should not start with '/' in the beginning, incorrect paths: %s", strings.Join(slices.Compact(leading), ", "))
	}

	for i, r := range rules {
		if !doublestar.ValidatePattern(normalizePattern(r.Pattern)) {
			return invalid("rule %d: %q is not a valid glob pattern", i, r.Pattern)
		}
	}

	return valid(rules)
}

// normalizeObject converts the mapping shapes produced by encoding/json and
// yaml.v3 into map[string]any. Non-string keys make the object invalid.
func normalizeObject(o any) (map[string]any, bool) {
	switch m := o.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = v
		}
		return out, true
	default:
		return nil, false
	}
}
