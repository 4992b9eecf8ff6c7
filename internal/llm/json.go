package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON means the model reply contained nothing decodable as an object.
var ErrNoJSON = errors.New("no JSON object in model reply")

// DecodeObject decodes the single JSON object a prompt asked for. The chain is
// strict parse of the whole reply first, then a lenient pass that extracts the
// first brace-matched substring (models often wrap the object in prose or code
// fences). Each stage is deterministic; the caller supplies the final template
// fallback where one exists.
func DecodeObject(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}
	extracted, ok := braceMatch(trimmed)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(extracted), v); err != nil {
		return ErrNoJSON
	}
	return nil
}

// braceMatch returns the first balanced {...} substring, tracking string
// literals so braces inside values do not miscount.
func braceMatch(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
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
					return raw[start : i+1], true
				}
			}
		}
	}
	return "", false
}
