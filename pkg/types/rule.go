package types

// Rule is one advanced sync rule: a glob pattern restricting which paths are
// enumerated. Patterns use '/' separators and are relative to the share root.
type Rule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
}

// Patterns returns the raw patterns of rules in order.
func Patterns(rules []Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Pattern)
	}
	return out
}
