package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/storyforge/internal/model"
)

// Parse converts a raw model response into a validated Decision.
// Markdown fences and surrounding prose are tolerated; anything that
// does not yield exactly one valid decision variant is a *FormatError.
func Parse(raw string) (model.Decision, error) {
	text, err := extractJSON(raw)
	if err != nil {
		return model.Decision{}, &FormatError{Raw: raw, Reason: err.Error()}
	}

	var d model.Decision
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return model.Decision{}, &FormatError{Raw: raw, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if err := d.Validate(); err != nil {
		return model.Decision{}, &FormatError{Raw: raw, Reason: err.Error()}
	}
	return d, nil
}

// extractJSON strips markdown fences and surrounding prose, returning
// the outermost JSON object in the response.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return s[start : end+1], nil
}

// snippet truncates s for error messages and logs.
func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
