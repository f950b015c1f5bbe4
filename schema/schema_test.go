// Package schema contains tests for strategy mapping and field eligibility.
package schema

import "testing"

// ---------------------------------------------------------------------------
// KindFor
// ---------------------------------------------------------------------------

func TestKindFor(t *testing.T) {
	tests := []struct {
		editor string
		want   Kind
		ok     bool
	}{
		{EditorSingleLine, KindPlain, true},
		{EditorSlug, KindPlain, true},
		{EditorTextarea, KindLongText, true},
		{EditorMarkdown, KindLongText, true},
		{EditorWysiwyg, KindLongText, true},
		{EditorStructuredText, KindStructured, true},
		{EditorRichText, KindRichText, true},
		{EditorSEO, KindSEO, true},
		{EditorJSON, KindStringArray, true},
		{EditorGallery, KindFileMeta, true},
		{EditorFile, KindFileMeta, true},
		{"date_picker", "", false},
		{"boolean", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := KindFor(tt.editor)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("KindFor(%q) = %q, %v; want %q, %v", tt.editor, got, ok, tt.want, tt.ok)
		}
	}
}

// ---------------------------------------------------------------------------
// Eligible
// ---------------------------------------------------------------------------

func localizedField(apiKey, editor string) Field {
	return Field{APIKey: apiKey, EditorType: editor, Localized: true}
}

func TestEligible(t *testing.T) {
	f := localizedField("title", EditorSingleLine)

	if !Eligible(f, nil, "Hello") {
		t.Error("plain localized field with a value must be eligible")
	}
	if Eligible(f, nil, "") {
		t.Error("empty source value must not be eligible")
	}
	if Eligible(f, nil, "   ") {
		t.Error("whitespace-only source value must not be eligible")
	}
	if Eligible(f, []string{"title"}, "Hello") {
		t.Error("excluded field must not be eligible")
	}
	if Eligible(f, []string{"TITLE"}, "Hello") {
		t.Error("exclusion matching is case-insensitive")
	}

	f.Localized = false
	if Eligible(f, nil, "Hello") {
		t.Error("non-localized field must not be eligible")
	}
}

func TestEligible_UntranslatableEditor(t *testing.T) {
	f := localizedField("published_at", "date_picker")
	if Eligible(f, nil, "2024-01-01") {
		t.Error("untranslatable editor type must not be eligible")
	}
}

func TestEligible_RichTextAndGallery(t *testing.T) {
	rich := localizedField("sections", EditorRichText)
	blocks := []any{map[string]any{"type": "block"}}
	if !Eligible(rich, nil, blocks) {
		t.Error("modular rich_text field with blocks must be eligible")
	}
	if Eligible(rich, nil, []any{}) {
		t.Error("empty block list must not be eligible")
	}

	gallery := localizedField("photos", EditorGallery)
	uploads := []any{map[string]any{"uploadId": "u-1", "alt": "A photo"}}
	if !Eligible(gallery, nil, uploads) {
		t.Error("gallery with uploads must be eligible")
	}
}

// ---------------------------------------------------------------------------
// IsEmptyValue
// ---------------------------------------------------------------------------

func TestIsEmptyValue(t *testing.T) {
	empty := []any{nil, "", "  \t ", []any{}, map[string]any{}}
	for _, v := range empty {
		if !IsEmptyValue(v) {
			t.Errorf("IsEmptyValue(%#v) = false, want true", v)
		}
	}
	nonEmpty := []any{"x", []any{"a"}, map[string]any{"k": 1}, 0, false}
	for _, v := range nonEmpty {
		if IsEmptyValue(v) {
			t.Errorf("IsEmptyValue(%#v) = true, want false", v)
		}
	}
}
