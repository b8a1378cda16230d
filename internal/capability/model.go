package capability

import "strings"

// ModelRef identifies a model by provider and model ID.
type ModelRef struct {
	ProviderID string
	ModelID    string
}

// ParseModelRef parses a "provider/model" string into a ModelRef.
func ParseModelRef(s string) ModelRef {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return ModelRef{ProviderID: parts[0], ModelID: parts[1]}
	}
	return ModelRef{ModelID: s}
}

// String returns the "provider/model" representation.
func (m ModelRef) String() string {
	if m.ProviderID == "" {
		return m.ModelID
	}
	return m.ProviderID + "/" + m.ModelID
}

// HasPrefix reports whether the full name or the bare model ID starts with
// prefix, ignoring case. An empty prefix matches nothing.
func (m ModelRef) HasPrefix(prefix string) bool {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(m.String()), prefix) ||
		strings.HasPrefix(strings.ToLower(m.ModelID), prefix)
}
