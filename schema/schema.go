// Package schema describes the host CMS's field metadata and decides which
// fields are candidates for translation.
package schema

import "strings"

// ---------------------------------------------------------------------------
// Editor types
// ---------------------------------------------------------------------------

// Editor type identifiers as reported by the host's field metadata.
const (
	EditorSingleLine     = "single_line"
	EditorTextarea       = "textarea"
	EditorMarkdown       = "markdown"
	EditorWysiwyg        = "wysiwyg"
	EditorStructuredText = "structured_text"
	EditorRichText       = "rich_text" // modular content: a list of embedded blocks
	EditorSEO            = "seo"
	EditorJSON           = "json"
	EditorSlug           = "slug"
	EditorGallery        = "gallery"
	EditorFile           = "file"
)

// Field is the host-supplied metadata for one record field.
type Field struct {
	// ID is the field's unique identifier in the host schema.
	ID string `json:"id"`
	// APIKey is the field's machine name; form values are keyed by it.
	APIKey string `json:"apiKey"`
	// Label is the human-readable field name.
	Label string `json:"label"`
	// EditorType selects the editing widget and the translation strategy.
	EditorType string `json:"editorType"`
	// Localized reports whether the field stores one value per locale.
	Localized bool `json:"localized"`
	// ItemTypeID is the owning model's identifier.
	ItemTypeID string `json:"itemTypeId"`
	// Hint is the optional editor hint (carried for UI, never translated).
	Hint string `json:"hint,omitempty"`
}

// ---------------------------------------------------------------------------
// Translation strategies
// ---------------------------------------------------------------------------

// Kind is the translation strategy tag the generic field translator
// dispatches on.
type Kind string

const (
	// KindPlain is a short scalar string translated in one request.
	KindPlain Kind = "plain"
	// KindLongText is markdown/HTML prose translated in size-bounded chunks.
	KindLongText Kind = "long_text"
	// KindStructured is a structured-text document (node tree).
	KindStructured Kind = "structured_text"
	// KindRichText is a list of embedded block records translated by walking
	// their payloads. Structured-text block sub-translation reuses this tag
	// for the whole block list.
	KindRichText Kind = "rich_text"
	// KindSEO is a {title, description, ...} object; only the two prose
	// members are translated.
	KindSEO Kind = "seo"
	// KindStringArray is a JSON array of strings (json editor).
	KindStringArray Kind = "string_array"
	// KindFileMeta is file/gallery metadata (alt, title per upload).
	KindFileMeta Kind = "file_meta"
)

// kindByEditor maps editor types to translation strategies. Editors absent
// from the map (links, dates, booleans, colors) are not translatable.
var kindByEditor = map[string]Kind{
	EditorSingleLine:     KindPlain,
	EditorSlug:           KindPlain,
	EditorTextarea:       KindLongText,
	EditorMarkdown:       KindLongText,
	EditorWysiwyg:        KindLongText,
	EditorStructuredText: KindStructured,
	EditorRichText:       KindRichText,
	EditorSEO:            KindSEO,
	EditorJSON:           KindStringArray,
	EditorGallery:        KindFileMeta,
	EditorFile:           KindFileMeta,
}

// KindFor returns the translation strategy for an editor type.
func KindFor(editorType string) (Kind, bool) {
	k, ok := kindByEditor[editorType]
	return k, ok
}

// ---------------------------------------------------------------------------
// Eligibility
// ---------------------------------------------------------------------------

// Eligible reports whether a field qualifies for translation: it must be
// localized, of a translatable editor type, not explicitly excluded, and
// carry a non-empty source-locale value.
//
// Special cases: modular rich_text fields qualify structurally (their blocks
// are localized through the owning field even though block attributes carry
// no locale flag of their own), and gallery fields qualify as collections of
// file metadata.
func Eligible(f Field, excluded []string, sourceValue any) bool {
	if !f.Localized {
		return false
	}
	if _, ok := KindFor(f.EditorType); !ok {
		return false
	}
	for _, ex := range excluded {
		if strings.EqualFold(ex, f.APIKey) {
			return false
		}
	}
	return !IsEmptyValue(sourceValue)
}

// IsEmptyValue reports whether a field value carries no translatable content.
func IsEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
