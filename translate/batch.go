package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldloc/fieldloc/langmeta"
	"github.com/fieldloc/fieldloc/proxy"
)

// ---------------------------------------------------------------------------
// Batch building
// ---------------------------------------------------------------------------

// DefaultBatchBudget is the approximate character budget per translation
// batch. A batch is emitted before the item that would push its serialized
// size past the budget.
const DefaultBatchBudget = 4800

// BuildBatches partitions values into contiguous, order-preserving slices
// whose summed string lengths stay under the budget. A slice is never empty:
// an item larger than the whole budget becomes its own slice. Every item is
// covered exactly once, so concatenating all batch outputs in order yields a
// list aligned with the input.
func BuildBatches(values []string, budget int) [][]string {
	if len(values) == 0 {
		return nil
	}
	if budget <= 0 {
		budget = DefaultBatchBudget
	}

	var batches [][]string
	var current []string
	size := 0

	for _, v := range values {
		if len(current) > 0 && size+len(v) > budget {
			batches = append(batches, current)
			current = nil
			size = 0
		}
		current = append(current, v)
		size += len(v)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// ---------------------------------------------------------------------------
// Prompt construction
// ---------------------------------------------------------------------------

// buildBatchPrompt builds the single user message for one batch. It embeds
// the JSON-serialized slice, source/target display names, the batch's
// position within the full list (positional fidelity hint), optional record
// context, and the strict output-format constraints.
func (t *Translator) buildBatchPrompt(batch []string, offset, total int) (string, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("serializing batch: %w", err)
	}

	from := langmeta.DisplayName(t.opts.FromLocale)
	to := langmeta.DisplayName(t.opts.ToLocale)

	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following JSON array of strings from %s to %s.\n", from, to)
	if t.opts.RecordContext != "" {
		fmt.Fprintf(&b, "Context about the record these strings belong to: %s\n", t.opts.RecordContext)
	}
	if total > len(batch) {
		fmt.Fprintf(&b, "These are items %d to %d of %d items from the same document; keep their order.\n",
			offset+1, offset+len(batch), total)
	}
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- Return ONLY a JSON array of exactly %d translated strings, in the same order as the input.\n", len(batch))
	b.WriteString("- Preserve empty strings as empty strings.\n")
	b.WriteString("- Preserve leading and trailing whitespace, newlines, and inline markup exactly.\n")
	b.WriteString("- Keep brand names and proper nouns unchanged.\n")
	b.WriteString("- Do not wrap the array in an object and do not add explanations or markdown fences.\n")
	if t.opts.ExtraPrompt != "" {
		b.WriteString(t.opts.ExtraPrompt)
		b.WriteString("\n")
	}
	b.WriteString("\nInput array:\n")
	b.Write(payload)
	return b.String(), nil
}

// buildTextPrompt builds the user message for a single plain-text chunk.
func (t *Translator) buildTextPrompt(text string) string {
	from := langmeta.DisplayName(t.opts.FromLocale)
	to := langmeta.DisplayName(t.opts.ToLocale)

	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following text from %s to %s.\n", from, to)
	if t.opts.RecordContext != "" {
		fmt.Fprintf(&b, "Context about the record this text belongs to: %s\n", t.opts.RecordContext)
	}
	b.WriteString("Return ONLY the translated text with the original formatting and markup preserved; no explanations, no fences.\n")
	if t.opts.ExtraPrompt != "" {
		b.WriteString(t.opts.ExtraPrompt)
		b.WriteString("\n")
	}
	b.WriteString("\nText:\n")
	b.WriteString(text)
	return b.String()
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// ErrNotArray marks a response that parsed as JSON but is not an array.
// Unlike a plain parse failure (which skips one batch), this aborts the
// whole field: the model is answering in the wrong shape and further
// batches would only compound the misalignment.
var ErrNotArray = errors.New("response is not a JSON array")

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// stripCodeFences removes a wrapping markdown code block, if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// parseBatch parses one completion into translated strings. Returns
// ErrNotArray for well-formed JSON of the wrong shape; any other error is a
// plain parse failure.
func parseBatch(content string) ([]string, error) {
	content = stripCodeFences(content)

	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parsing batch response: %w", err)
	}
	items, ok := parsed.([]any)
	if !ok {
		return nil, ErrNotArray
	}

	out := make([]string, len(items))
	for i, it := range items {
		if s, ok := it.(string); ok {
			out[i] = s
			continue
		}
		// The model occasionally nests or numbers items; keep the raw JSON
		// text rather than dropping the slot and breaking alignment.
		raw, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("re-serializing batch item %d: %w", i, err)
		}
		out[i] = string(raw)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Length reconciliation
// ---------------------------------------------------------------------------

// ReconcileLengths aligns the concatenated batch outputs with the original
// list. A short result is padded from the original values at the missing
// positions (untranslated text beats lost alignment); a long result is
// truncated. Runs once per field, after all batches.
func ReconcileLengths(original, translated []string) []string {
	if len(translated) == len(original) {
		return translated
	}
	out := make([]string, len(original))
	for i := range original {
		if i < len(translated) {
			out[i] = translated[i]
		} else {
			out[i] = original[i]
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Batch translation protocol
// ---------------------------------------------------------------------------

// TranslateValues runs the full batch protocol over a text-value list:
// batching, one completion per batch, lenient per-batch parse recovery, and
// a single whole-field length reconciliation. The result always has exactly
// len(values) entries.
//
// Error contract: a batch whose response fails to parse as JSON is skipped
// (its slots are later back-filled from the originals); a response that is
// valid JSON but not an array aborts the field with ErrNotArray; remote
// failures that survive the client's retries are propagated.
func (t *Translator) TranslateValues(ctx context.Context, values []string) ([]string, error) {
	if len(values) == 0 {
		return []string{}, nil
	}

	batches := BuildBatches(values, t.opts.batchBudget())
	var combined []string
	offset := 0

	for i, batch := range batches {
		prompt, err := t.buildBatchPrompt(batch, offset, len(values))
		if err != nil {
			return nil, err
		}

		content, err := t.opts.Client.Complete(ctx, proxy.UserMessage(prompt))
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}

		translated, err := parseBatch(content)
		if errors.Is(err, ErrNotArray) {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
		if err != nil {
			// Skip just this batch; the remaining batches still contribute
			// and reconciliation restores alignment from the originals.
			t.opts.logError("batch %d/%d unparseable, skipping: %v", i+1, len(batches), err)
			offset += len(batch)
			continue
		}

		combined = append(combined, translated...)
		offset += len(batch)
	}

	if len(combined) != len(values) {
		t.opts.logError("translated %d of %d values; padding the rest from the source", len(combined), len(values))
	}
	return ReconcileLengths(values, combined), nil
}
