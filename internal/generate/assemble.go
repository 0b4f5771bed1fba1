package generate

import (
	"fmt"

	"gitre-go/internal/model"
)

// ParseSingle coerces a raw JSON object into a GeneratedMessage keyed to the
// originating commit. This path is deliberately lenient about model noise:
// an oversize subject is clamped to the limit with an ellipsis, and a
// missing or unrecognized category defaults to "Changed". Direct
// construction via model.NewGeneratedMessage stays strict.
func ParseSingle(raw map[string]any, commit model.CommitRecord) (model.GeneratedMessage, error) {
	subject := asString(raw["subject"])
	if runes := []rune(subject); len(runes) > model.MaxSubjectLen {
		subject = string(runes[:model.MaxSubjectLen-3]) + "..."
	}

	var body *string
	if v, ok := raw["body"]; ok && v != nil {
		s := asString(v)
		body = &s
	}

	category := asString(raw["changelog_category"])
	if !model.ValidCategory(category) {
		category = "Changed"
	}

	return model.NewGeneratedMessage(commit.Hash, commit.ShortHash, subject, body, category, asString(raw["changelog_entry"]))
}

// asString coerces arbitrary JSON values to their string form; nil becomes
// the empty string.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
