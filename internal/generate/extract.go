// Package generate turns enriched commit records into validated generated
// messages: prompt building, multi-strategy JSON extraction from untrusted
// model output, and batch assembly with per-element fallback.
package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparseableResponse is returned when no extraction strategy recovers
// valid JSON from the model's response text.
var ErrUnparseableResponse = errors.New("could not extract valid JSON from model response")

// ErrEmptyResponse is returned when the model produced no text at all.
var ErrEmptyResponse = errors.New("empty response from model")

var (
	fenceRe       = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")
	singleShapeRe = regexp.MustCompile(`\{\s*"subject"`)
)

// ExtractJSON recovers a JSON object (map[string]any) or array ([]any) from
// free-form model output. Strategies are tried in a load-bearing order:
//
//  1. Direct parse of the trimmed text.
//  2. Every code fence in order of appearance; the first fence that parses
//     wins, without shape validation. A malformed-but-valid-JSON early fence
//     can therefore shadow a well-formed later one; this is a known sharp
//     edge kept for compatibility with well-behaved single-fence responses.
//  3. Bracket scan with key validation. Arrays are tried before objects so
//     a batch array embedded in prose is returned whole rather than being
//     short-circuited into its first object.
//  4. Regex rescue for the single-object shape ({"subject"...), tried last
//     so it cannot steal elements out of a batch array; yields only objects.
func ExtractJSON(text string) (any, error) {
	text = strings.TrimSpace(text)

	// Strategy 1: direct parse.
	if v, ok := parseJSON(text); ok {
		return v, nil
	}

	// Strategy 2: code fences, all of them, first parseable wins.
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		if v, ok := parseJSON(strings.TrimSpace(m[1])); ok {
			return v, nil
		}
	}

	// Strategy 3: first '[' then first '{', verbatim remainder first, then
	// depth-tracked bracket matching. Candidates must pass key validation
	// so unrelated JSON quoted in prose is not mistaken for the response.
	for _, p := range []struct{ open, close byte }{{'[', ']'}, {'{', '}'}} {
		idx := strings.IndexByte(text, p.open)
		if idx == -1 {
			continue
		}
		candidate := text[idx:]
		if v, ok := parseJSON(candidate); ok {
			if validateKeys(v) {
				return v, nil
			}
			continue
		}
		if sub, ok := matchBracket(candidate, p.open, p.close); ok {
			if v, ok := parseJSON(sub); ok && validateKeys(v) {
				return v, nil
			}
		}
	}

	// Strategy 4: single-object shape rescue.
	if loc := singleShapeRe.FindStringIndex(text); loc != nil {
		candidate := text[loc[0]:]
		if v, ok := parseJSON(candidate); ok {
			if obj, isObj := v.(map[string]any); isObj {
				return obj, nil
			}
		} else if sub, ok := matchBracket(candidate, '{', '}'); ok {
			if v, ok := parseJSON(sub); ok {
				if obj, isObj := v.(map[string]any); isObj {
					return obj, nil
				}
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnparseableResponse, clip(text, 200))
}

// parseJSON parses s as JSON and reports success only for objects and
// arrays. Trailing non-JSON text fails the parse, as intended.
func parseJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	return nil, false
}

// matchBracket finds the substring from the start of s to the closing
// bracket matching s[0], tracking nesting depth of the same bracket pair
// only (the other bracket type is ignored).
func matchBracket(s string, open, close byte) (string, bool) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// validateKeys accepts an object only when it carries the minimally required
// response keys, and an array only when its first element is such an object.
func validateKeys(v any) bool {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return false
		}
		obj, ok := t[0].(map[string]any)
		return ok && hasRequiredKeys(obj)
	case map[string]any:
		return hasRequiredKeys(t)
	}
	return false
}

func hasRequiredKeys(m map[string]any) bool {
	_, hasSubject := m["subject"]
	_, hasCategory := m["changelog_category"]
	return hasSubject && hasCategory
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
