// Package translate implements the field translation pipeline: the batch
// translation protocol for string lists, the chunked helper for long prose,
// the structured-text orchestrator, and the generic field-value translator
// that ties the strategies together.
//
// The generic translator and the structured orchestrator are mutually
// recursive (structured documents embed blocks; blocks embed documents);
// recursion is bounded by an explicit depth cap so a malicious or cyclic
// value can never run away.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fieldloc/fieldloc/proxy"
	"github.com/fieldloc/fieldloc/schema"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// DefaultChunkSize is the approximate character budget for one chunk of raw
// long text (markdown, HTML prose).
const DefaultChunkSize = 3000

// DefaultMaxDepth bounds the mutual recursion between the structured-text
// orchestrator and the generic field translator. Real documents nest a
// handful of levels; anything deeper is returned untranslated.
const DefaultMaxDepth = 12

// Completer is the remote completion contract: one message list in, one text
// answer out. The proxy client satisfies it; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, messages []proxy.Message) (string, error)
}

// Options configures a Translator.
type Options struct {
	// Client performs remote completions. Required.
	Client Completer
	// FromLocale and ToLocale are locale codes ("en", "pt-BR").
	FromLocale string
	ToLocale   string
	// RecordContext is an optional description of the record, embedded in
	// every prompt to bias terminology.
	RecordContext string
	// ExtraPrompt is appended verbatim to every prompt (user override).
	ExtraPrompt string
	// BatchBudget overrides DefaultBatchBudget when > 0.
	BatchBudget int
	// ChunkSize overrides DefaultChunkSize when > 0.
	ChunkSize int
	// MaxDepth overrides DefaultMaxDepth when > 0.
	MaxDepth int
	// OnLog and OnError receive progress/diagnostic messages.
	OnLog   func(format string, args ...any)
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) batchBudget() int {
	if o.BatchBudget > 0 {
		return o.BatchBudget
	}
	return DefaultBatchBudget
}

func (o *Options) chunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return DefaultChunkSize
}

func (o *Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

// ---------------------------------------------------------------------------
// Translator
// ---------------------------------------------------------------------------

// Translator translates field values of any supported kind between one locale
// pair. It is stateless apart from its options and safe to reuse across
// fields of the same job.
type Translator struct {
	opts Options
}

// New creates a Translator.
func New(opts Options) *Translator {
	return &Translator{opts: opts}
}

// Translate translates one field value according to its strategy kind.
//
// Scalar strategies propagate remote errors to the caller (the job fails and
// is reported); the structured strategy degrades to the original value on any
// internal failure, because a structured document must never be corrupted or
// lost by a failed translation.
func (t *Translator) Translate(ctx context.Context, value any, kind schema.Kind) (any, error) {
	return t.translateValue(ctx, value, kind, 0)
}

func (t *Translator) translateValue(ctx context.Context, value any, kind schema.Kind, depth int) (any, error) {
	if value == nil {
		return value, nil
	}
	if depth > t.opts.maxDepth() {
		t.opts.logError("value nested deeper than %d levels, returning untranslated", t.opts.maxDepth())
		return value, nil
	}

	switch kind {
	case schema.KindPlain:
		return t.translatePlain(ctx, value)
	case schema.KindLongText:
		return t.translateLongText(ctx, value)
	case schema.KindStructured:
		return t.translateStructured(ctx, value, depth), nil
	case schema.KindRichText:
		return t.translateRichText(ctx, value, depth)
	case schema.KindSEO:
		return t.translateSEO(ctx, value)
	case schema.KindStringArray:
		return t.translateStringArray(ctx, value)
	case schema.KindFileMeta:
		return t.translateFileMeta(ctx, value)
	default:
		t.opts.log("unsupported field kind %q, leaving value unchanged", kind)
		return value, nil
	}
}

// ---------------------------------------------------------------------------
// Plain and long-text strategies
// ---------------------------------------------------------------------------

func (t *Translator) translatePlain(ctx context.Context, value any) (any, error) {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return value, nil
	}
	out, err := t.translateText(ctx, s)
	if err != nil {
		return value, err
	}
	return out, nil
}

// translateLongText splits prose into chunks under the chunk budget,
// translates each chunk as raw text, and concatenates the results.
func (t *Translator) translateLongText(ctx context.Context, value any) (any, error) {
	s, ok := value.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return value, nil
	}

	chunks := SplitText(s, t.opts.chunkSize())
	if len(chunks) == 1 {
		out, err := t.translateText(ctx, s)
		if err != nil {
			return value, err
		}
		return out, nil
	}

	var b strings.Builder
	for i, chunk := range chunks {
		out, err := t.translateText(ctx, chunk)
		if err != nil {
			return value, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// translateText sends one raw text chunk and returns the completion with any
// wrapping fences removed.
func (t *Translator) translateText(ctx context.Context, text string) (string, error) {
	content, err := t.opts.Client.Complete(ctx, proxy.UserMessage(t.buildTextPrompt(text)))
	if err != nil {
		return "", err
	}
	return stripCodeFences(content), nil
}

// SplitText splits text into chunks of at most limit characters, preferring
// paragraph breaks, then line breaks, then sentence ends, before cutting
// mid-text. Concatenating the chunks reproduces the input exactly.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkSize
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	rest := text
	for len(rest) > limit {
		cut := splitPoint(rest, limit)
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	if len(rest) > 0 {
		chunks = append(chunks, rest)
	}
	return chunks
}

// splitPoint finds the best cut position within rest[:limit].
func splitPoint(rest string, limit int) int {
	window := rest[:limit]
	for _, sep := range []string{"\n\n", "\n", ". "} {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return idx + len(sep)
		}
	}
	return limit
}

// ---------------------------------------------------------------------------
// SEO strategy
// ---------------------------------------------------------------------------

// seo title/description are translated through the array protocol in a
// single request; every other member (image, twitter card, no-index) is
// carried through unchanged.
func (t *Translator) translateSEO(ctx context.Context, value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return value, nil
	}

	var keys []string
	var values []string
	for _, k := range []string{"title", "description"} {
		if s, ok := m[k].(string); ok && s != "" {
			keys = append(keys, k)
			values = append(values, s)
		}
	}
	if len(values) == 0 {
		return value, nil
	}

	translated, err := t.TranslateValues(ctx, values)
	if err != nil {
		return value, err
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for i, k := range keys {
		out[k] = translated[i]
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// String-array strategy (json editor)
// ---------------------------------------------------------------------------

// translateStringArray handles json-editor values: either a decoded []any of
// strings or a string containing a serialized JSON array. Non-string
// elements and non-array payloads pass through unchanged.
func (t *Translator) translateStringArray(ctx context.Context, value any) (any, error) {
	switch val := value.(type) {
	case []any:
		strs, ok := stringSlice(val)
		if !ok {
			return value, nil
		}
		translated, err := t.TranslateValues(ctx, strs)
		if err != nil {
			return value, err
		}
		out := make([]any, len(translated))
		for i, s := range translated {
			out[i] = s
		}
		return out, nil

	case string:
		var items []string
		if err := json.Unmarshal([]byte(val), &items); err != nil || len(items) == 0 {
			return value, nil
		}
		translated, err := t.TranslateValues(ctx, items)
		if err != nil {
			return value, err
		}
		data, err := json.Marshal(translated)
		if err != nil {
			return value, err
		}
		return string(data), nil

	default:
		return value, nil
	}
}

func stringSlice(items []any) ([]string, bool) {
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// ---------------------------------------------------------------------------
// File metadata strategy (file and gallery editors)
// ---------------------------------------------------------------------------

// translateFileMeta translates the alt/title metadata of one upload or of a
// gallery (a list of uploads). File references themselves are untouched.
func (t *Translator) translateFileMeta(ctx context.Context, value any) (any, error) {
	switch val := value.(type) {
	case map[string]any:
		return t.translateUploadMeta(ctx, val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			m, ok := item.(map[string]any)
			if !ok {
				out[i] = item
				continue
			}
			translated, err := t.translateUploadMeta(ctx, m)
			if err != nil {
				return value, err
			}
			out[i] = translated
		}
		return out, nil
	default:
		return value, nil
	}
}

func (t *Translator) translateUploadMeta(ctx context.Context, m map[string]any) (any, error) {
	var keys []string
	var values []string
	for _, k := range []string{"alt", "title"} {
		if s, ok := m[k].(string); ok && s != "" {
			keys = append(keys, k)
			values = append(values, s)
		}
	}
	if len(values) == 0 {
		return m, nil
	}

	translated, err := t.TranslateValues(ctx, values)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for i, k := range keys {
		out[k] = translated[i]
	}
	return out, nil
}
