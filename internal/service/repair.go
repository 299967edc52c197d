package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/titanous/json5"
)

// ErrMalformedOutput is returned when repaired model output still fails to
// parse as JSON or fails schema validation. It is surfaced distinctly and
// never silently coerced.
var ErrMalformedOutput = errors.New("invalid generation result")

// CleanModelOutput strips code fences and isolates the JSON object inside raw
// model text. Round-trips clean JSON unchanged.
func CleanModelOutput(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	if obj, ok := extractJSONObject(cleaned); ok {
		return obj
	}

	// Unbalanced output: fall back to the greedy first-{ last-} span.
	if i := strings.Index(cleaned, "{"); i >= 0 {
		if j := strings.LastIndex(cleaned, "}"); j > i {
			return cleaned[i : j+1]
		}
	}

	return cleaned
}

// extractJSONObject returns the first balanced top-level object. The scan
// tracks string literals and escapes so braces inside values do not break
// matching.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// ParseRecipeData repairs raw model output and parses it into RecipeData.
// JSON5 tolerates the trailing commas and minor syntax slips models emit;
// strict parsing would reject otherwise-usable output.
func ParseRecipeData(raw string) (*RecipeData, error) {
	cleaned := CleanModelOutput(raw)

	var data RecipeData
	if err := json5.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return &data, nil
}
