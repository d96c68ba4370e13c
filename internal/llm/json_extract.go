package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var ErrNoJSON = errors.New("no valid JSON object found in response")

var codeBlockPattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// ExtractJSON pulls the JSON object out of a completion. A fenced ```json
// (or untagged) block wins; otherwise the first balanced {...} is used.
func ExtractJSON(response string) (string, error) {
	for _, m := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		lang := strings.ToLower(m[1])
		if lang != "" && lang != "json" {
			continue
		}
		content := strings.TrimSpace(m[2])
		if strings.HasPrefix(content, "{") && json.Valid([]byte(content)) {
			return content, nil
		}
	}

	start := strings.Index(response, "{")
	if start < 0 {
		return "", ErrNoJSON
	}
	if obj := matchingObject(response[start:]); obj != "" && json.Valid([]byte(obj)) {
		return obj, nil
	}
	return "", ErrNoJSON
}

// matchingObject returns the prefix of s up to the brace closing s[0],
// skipping braces inside string literals.
func matchingObject(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
