package rule

// unwrap returns the rule-set inside a {"rules": ...} document, or doc
// itself when it is not wrapped. Files may hold either form.
func unwrap(doc any) any {
	m, ok := doc.(map[string]any)
	if !ok || len(m) != 1 {
		return doc
	}
	if rules, found := m["rules"]; found {
		return rules
	}
	return doc
}
