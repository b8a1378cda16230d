package dispatch

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
	codeFence = regexp.MustCompile("(?s)^```[\\w+#.-]*[ \\t]*\\n(.*?)\\n?```$")
)

// parseJSON decodes model output that should be a JSON object but may be
// wrapped in markdown fences or surrounded by chatter.
func parseJSON[T any](raw string) (T, error) {
	var result T
	if err := json.Unmarshal([]byte(raw), &result); err == nil {
		return result, nil
	}

	var cleaned T
	if err := json.Unmarshal([]byte(stripMarkdownJSON(raw)), &cleaned); err != nil {
		return cleaned, fmt.Errorf("not a JSON object: %s", truncate(raw, 120))
	}
	return cleaned, nil
}

// stripMarkdownJSON removes markdown code fences and leading/trailing
// non-JSON text.
func stripMarkdownJSON(s string) string {
	s = strings.TrimSpace(s)

	if matches := jsonFence.FindStringSubmatch(s); len(matches) > 1 {
		s = strings.TrimSpace(matches[1])
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	end := strings.LastIndexByte(s, '}')
	if end <= start {
		return s
	}
	return s[start : end+1]
}

// stripCodeFence unwraps content that is a single fenced code block.
// Anything else is returned unchanged.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if matches := codeFence.FindStringSubmatch(trimmed); len(matches) > 1 {
		return matches[1]
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
