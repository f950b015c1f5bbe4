package translate

import (
	"context"
	"fmt"
	"sort"

	"github.com/fieldloc/fieldloc/dast"
	"github.com/fieldloc/fieldloc/schema"
)

// ---------------------------------------------------------------------------
// Structured-document orchestrator
// ---------------------------------------------------------------------------

// translateStructured translates one structured-text field value. Whatever
// goes wrong past the shape check — a remote failure, a malformed tree, a
// misbehaving model — the caller gets the original value back: translation
// failure must never corrupt or lose content.
func (t *Translator) translateStructured(ctx context.Context, value any, depth int) any {
	doc, ok := dast.ParseValue(value)
	if !ok {
		t.opts.log("value is not a structured document, leaving unchanged")
		return value
	}

	out, err := t.translateDocument(ctx, doc, depth)
	if err != nil {
		t.opts.logError("structured translation failed, keeping original: %v", err)
		return value
	}
	return out
}

// translateDocument runs the pipeline over a parsed document:
// strip ids, partition blocks from inline nodes, batch-translate the inline
// text, recursively translate the block list as one rich-text unit, splice
// the blocks back at their recorded positions, and re-wrap the envelope.
func (t *Translator) translateDocument(ctx context.Context, doc *dast.Document, depth int) (any, error) {
	nodes := dast.StripIDs(doc.Nodes)
	blocks, inline := dast.SplitBlocks(nodes)

	textValues := dast.Extract(inline)
	if len(textValues) == 0 && len(blocks) == 0 {
		return doc.Value(), nil
	}

	result := inline
	if len(textValues) > 0 {
		translated, err := t.TranslateValues(ctx, textValues)
		if err != nil {
			return nil, err
		}
		result = dast.Reassemble(inline, translated)
	}

	if len(blocks) > 0 {
		translatedBlocks, err := t.translateBlockNodes(ctx, blocks, depth)
		if err != nil {
			return nil, err
		}
		for _, b := range translatedBlocks {
			idx := len(result)
			if b.OriginalIndex != nil {
				idx = *b.OriginalIndex
			}
			result = dast.InsertAt(result, b, idx)
		}
	}

	result = dast.ClearOriginalIndex(result)
	return doc.WithNodes(result).Value(), nil
}

// translateBlockNodes routes the whole block list through the generic
// translator under the rich-text classification — one recursive call for the
// list, not one per block. The originalIndex annotation rides along as a
// plain attribute and comes back for re-insertion.
func (t *Translator) translateBlockNodes(ctx context.Context, blocks []*dast.Node, depth int) ([]*dast.Node, error) {
	items := dast.NodesToAny(blocks)

	translated, err := t.translateValue(ctx, items, schema.KindRichText, depth+1)
	if err != nil {
		return nil, err
	}

	outItems, ok := translated.([]any)
	if !ok || len(outItems) != len(blocks) {
		return nil, fmt.Errorf("block translation changed shape: got %T of %d, want %d blocks",
			translated, len(outItems), len(blocks))
	}
	return dast.NodesFromAny(outItems), nil
}

// ---------------------------------------------------------------------------
// Rich-text (block list) strategy
// ---------------------------------------------------------------------------

// blockSkipKeys are payload keys whose string values are structural
// references or annotations, never prose.
var blockSkipKeys = map[string]bool{
	"id":            true,
	"type":          true,
	"originalIndex": true,
	"itemId":        true,
	"itemTypeId":    true,
	"blockModelId":  true,
	"relationships": true,
	"meta":          true,
}

// translateRichText translates a list of embedded block records by walking
// their payloads: every free string leaf is routed through the batch
// protocol (one protocol run for the whole list), and every nested
// structured-text envelope recurses through the orchestrator.
func (t *Translator) translateRichText(ctx context.Context, value any, depth int) (any, error) {
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return value, nil
	}

	// First pass: collect string leaves in deterministic traversal order.
	var collected []string
	for _, item := range items {
		rewriteBlockValue(item, func(s string) string {
			collected = append(collected, s)
			return s
		}, func(doc any) any { return doc })
	}

	translated := collected
	if len(collected) > 0 {
		var err error
		translated, err = t.TranslateValues(ctx, collected)
		if err != nil {
			return value, err
		}
	}

	// Second pass: same traversal, substituting the k-th leaf and recursing
	// into nested documents.
	cursor := 0
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = rewriteBlockValue(item, func(s string) string {
			if cursor < len(translated) {
				s = translated[cursor]
			}
			cursor++
			return s
		}, func(doc any) any {
			// Route through the generic dispatch so the depth cap applies.
			out, err := t.translateValue(ctx, doc, schema.KindStructured, depth+1)
			if err != nil {
				return doc
			}
			return out
		})
	}
	return out, nil
}

// rewriteBlockValue walks a block payload depth-first with sorted map keys
// (deterministic order is what keeps the two passes aligned), applying
// visitString to free string leaves and visitDoc to nested structured-text
// envelopes. Skipped keys are copied through untouched.
func rewriteBlockValue(v any, visitString func(string) string, visitDoc func(any) any) any {
	switch val := v.(type) {
	case string:
		return visitString(val)

	case map[string]any:
		if isDocEnvelope(val) {
			return visitDoc(val)
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(val))
		for _, k := range keys {
			if blockSkipKeys[k] {
				out[k] = val[k]
				continue
			}
			out[k] = rewriteBlockValue(val[k], visitString, visitDoc)
		}
		return out

	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = rewriteBlockValue(item, visitString, visitDoc)
		}
		return out

	default:
		return val
	}
}

// isDocEnvelope reports whether a map is a structured-text envelope
// ({document:{children:[...]}}), the only unambiguous marker of a nested
// document inside an opaque block payload.
func isDocEnvelope(m map[string]any) bool {
	inner, ok := m["document"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = inner["children"].([]any)
	return ok
}
