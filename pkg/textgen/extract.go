package textgen

import (
	"errors"
	"strings"
)

// ErrNoJSON signals that no JSON-shaped substring was found in a response.
// Callers decide between a fallback record and skipping the item.
var ErrNoJSON = errors.New("no JSON payload found in response")

// ExtractObject returns the first JSON-object-shaped substring of text: from
// the first '{' through the last '}'. The result is not validated; callers
// unmarshal it and handle decode errors themselves.
func ExtractObject(text string) (string, error) {
	return extractDelimited(text, '{', '}')
}

// ExtractArray returns the first JSON-array-shaped substring of text, from
// the first '[' through the last ']'.
func ExtractArray(text string) (string, error) {
	return extractDelimited(text, '[', ']')
}

func extractDelimited(text string, open, close byte) (string, error) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", ErrNoJSON
	}
	end := strings.LastIndexByte(text, close)
	if end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}
