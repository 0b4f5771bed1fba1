package generate

import (
	"errors"
	"testing"
)

func TestExtractJSON_Direct(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		v, err := ExtractJSON(`{"subject": "Fix bug", "changelog_category": "Fixed"}`)
		if err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
		obj, ok := v.(map[string]any)
		if !ok {
			t.Fatalf("got %T, want object", v)
		}
		if obj["subject"] != "Fix bug" {
			t.Errorf("subject = %v", obj["subject"])
		}
	})

	t.Run("array", func(t *testing.T) {
		v, err := ExtractJSON(`[{"subject": "a", "changelog_category": "Added"}]`)
		if err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
		if _, ok := v.([]any); !ok {
			t.Fatalf("got %T, want array", v)
		}
	})

	t.Run("surrounding whitespace", func(t *testing.T) {
		if _, err := ExtractJSON("\n\n  {\"subject\": \"x\", \"changelog_category\": \"Added\"}  \n"); err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
	})

	t.Run("bare scalar is not accepted", func(t *testing.T) {
		_, err := ExtractJSON(`"just a string"`)
		if !errors.Is(err, ErrUnparseableResponse) {
			t.Errorf("error = %v, want ErrUnparseableResponse", err)
		}
	})
}

func TestExtractJSON_CodeFences(t *testing.T) {
	t.Run("json fence", func(t *testing.T) {
		text := "Here is the result:\n```json\n{\"subject\": \"Add feature\", \"changelog_category\": \"Added\"}\n```\nDone."
		v, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
		obj := v.(map[string]any)
		if obj["subject"] != "Add feature" {
			t.Errorf("subject = %v", obj["subject"])
		}
	})

	t.Run("anonymous fence", func(t *testing.T) {
		text := "```\n{\"subject\": \"x\", \"changelog_category\": \"Fixed\"}\n```"
		if _, err := ExtractJSON(text); err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
	})

	t.Run("first parseable fence wins", func(t *testing.T) {
		text := "```\nnot json at all\n```\nand then\n```json\n{\"subject\": \"second\", \"changelog_category\": \"Fixed\"}\n```"
		v, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
		if v.(map[string]any)["subject"] != "second" {
			t.Errorf("subject = %v, want second", v.(map[string]any)["subject"])
		}
	})

	t.Run("fence content is not shape-checked", func(t *testing.T) {
		// A fenced object without the required keys still wins; this is
		// the documented sharp edge.
		text := "```json\n{\"name\": \"Alice\"}\n```"
		v, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
		if v.(map[string]any)["name"] != "Alice" {
			t.Errorf("got %v", v)
		}
	})
}

func TestExtractJSON_BracketScan(t *testing.T) {
	t.Run("object embedded in prose", func(t *testing.T) {
		text := `Sure! The answer is {"subject": "Fix crash", "changelog_category": "Fixed"} as requested.`
		v, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
		if v.(map[string]any)["subject"] != "Fix crash" {
			t.Errorf("subject = %v", v.(map[string]any)["subject"])
		}
	})

	t.Run("array is preferred over a later object", func(t *testing.T) {
		text := `Results: [{"subject": "a", "changelog_category": "Added"}, {"subject": "b", "changelog_category": "Fixed"}] done`
		v, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
		list, ok := v.([]any)
		if !ok {
			t.Fatalf("got %T, want array", v)
		}
		if len(list) != 2 {
			t.Errorf("len = %d, want 2", len(list))
		}
	})

	t.Run("rejects unrelated JSON without required keys", func(t *testing.T) {
		text := `The user record is {"name": "Alice", "age": 30} but no message here.`
		_, err := ExtractJSON(text)
		if !errors.Is(err, ErrUnparseableResponse) {
			t.Errorf("error = %v, want ErrUnparseableResponse", err)
		}
	})

	t.Run("nested objects survive bracket matching", func(t *testing.T) {
		text := `prefix {"subject": "x", "changelog_category": "Added", "meta": {"inner": 1}} suffix`
		v, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
		if _, ok := v.(map[string]any)["meta"]; !ok {
			t.Error("nested object lost")
		}
	})
}

func TestExtractJSON_SingleShapeRescue(t *testing.T) {
	t.Run("rescues the subject-shaped object", func(t *testing.T) {
		// The first object in the text lacks the required keys, so the
		// bracket scan rejects it; the regex rescue finds the real one.
		text := `User: {"name": "Alice"} Message: {"subject": "Refactor parser", "changelog_category": "Changed"}`
		v, err := ExtractJSON(text)
		if err != nil {
			t.Fatalf("ExtractJSON() error = %v", err)
		}
		obj, ok := v.(map[string]any)
		if !ok {
			t.Fatalf("got %T, want object", v)
		}
		if obj["subject"] != "Refactor parser" {
			t.Errorf("subject = %v", obj["subject"])
		}
	})

	t.Run("nothing extractable", func(t *testing.T) {
		_, err := ExtractJSON("no json here at all")
		if !errors.Is(err, ErrUnparseableResponse) {
			t.Errorf("error = %v, want ErrUnparseableResponse", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ExtractJSON("   ")
		if !errors.Is(err, ErrUnparseableResponse) {
			t.Errorf("error = %v, want ErrUnparseableResponse", err)
		}
	})
}
