// Package translate contains tests for the batch translation protocol.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/fieldloc/fieldloc/proxy"
)

// ---------------------------------------------------------------------------
// Fake completer
//
// The default fake behaves like a well-behaved model: it finds the JSON array
// (or raw text) at the end of the prompt and "translates" every string by
// prefixing it. Tests override fn for failure scenarios.
// ---------------------------------------------------------------------------

type fakeCompleter struct {
	fn      func(prompt string) (string, error)
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, messages []proxy.Message) (string, error) {
	prompt := messages[len(messages)-1].Content
	f.prompts = append(f.prompts, prompt)
	if f.fn != nil {
		return f.fn(prompt)
	}
	return echoTranslate(prompt)
}

// echoTranslate answers a batch prompt with a prefixed copy of its input
// array, and a text prompt with a prefixed copy of its text.
func echoTranslate(prompt string) (string, error) {
	if idx := strings.Index(prompt, "Input array:\n"); idx >= 0 {
		var items []string
		if err := json.Unmarshal([]byte(prompt[idx+len("Input array:\n"):]), &items); err != nil {
			return "", fmt.Errorf("fake: bad prompt payload: %w", err)
		}
		out := make([]string, len(items))
		for i, s := range items {
			if s == "" {
				out[i] = ""
			} else {
				out[i] = "T:" + s
			}
		}
		data, _ := json.Marshal(out)
		return string(data), nil
	}
	if idx := strings.Index(prompt, "Text:\n"); idx >= 0 {
		return "T:" + prompt[idx+len("Text:\n"):], nil
	}
	return "", errors.New("fake: unrecognized prompt")
}

func testTranslator(c Completer) *Translator {
	return New(Options{
		Client:     c,
		FromLocale: "en",
		ToLocale:   "it",
	})
}

// ---------------------------------------------------------------------------
// BuildBatches
// ---------------------------------------------------------------------------

func TestBuildBatches_Coverage(t *testing.T) {
	values := []string{"aaaa", "bbbb", "cccc", "dddd", "eeee"}
	batches := BuildBatches(values, 10)

	var flat []string
	for _, b := range batches {
		if len(b) == 0 {
			t.Fatal("empty batch emitted")
		}
		flat = append(flat, b...)
	}
	if !reflect.DeepEqual(flat, values) {
		t.Errorf("concatenated batches = %v, want %v", flat, values)
	}
}

func TestBuildBatches_EmitsBeforeOverflow(t *testing.T) {
	// 4+4=8 fits in 10; the third item would overflow, so it starts batch 2.
	batches := BuildBatches([]string{"aaaa", "bbbb", "cccc"}, 10)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2: %v", len(batches), batches)
	}
	if len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Errorf("batch sizes = %d,%d; want 2,1", len(batches[0]), len(batches[1]))
	}
}

func TestBuildBatches_OversizedItemAlone(t *testing.T) {
	big := strings.Repeat("x", 100)
	batches := BuildBatches([]string{"a", big, "b"}, 10)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3: %v", len(batches), batches)
	}
	if batches[1][0] != big {
		t.Error("oversized item must form its own batch")
	}
}

func TestBuildBatches_Empty(t *testing.T) {
	if got := BuildBatches(nil, 100); got != nil {
		t.Errorf("BuildBatches(nil) = %v, want nil", got)
	}
}

// ---------------------------------------------------------------------------
// ReconcileLengths
// ---------------------------------------------------------------------------

func TestReconcileLengths(t *testing.T) {
	original := []string{"a", "b", "c"}

	tests := []struct {
		name       string
		translated []string
		want       []string
	}{
		{"exact", []string{"x", "y", "z"}, []string{"x", "y", "z"}},
		{"short pads from original tail", []string{"x", "y"}, []string{"x", "y", "c"}},
		{"long truncates", []string{"x", "y", "z", "w"}, []string{"x", "y", "z"}},
		{"empty pads everything", []string{}, []string{"a", "b", "c"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ReconcileLengths(original, tc.translated)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// parseBatch
// ---------------------------------------------------------------------------

func TestParseBatch_PlainArray(t *testing.T) {
	got, err := parseBatch(`["x", "", "y"]`)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"x", "", "y"}) {
		t.Errorf("got %v", got)
	}
}

func TestParseBatch_StripsFences(t *testing.T) {
	for _, raw := range []string{
		"```json\n[\"x\"]\n```",
		"```\n[\"x\"]\n```",
		"  [\"x\"]  ",
	} {
		got, err := parseBatch(raw)
		if err != nil {
			t.Fatalf("parseBatch(%q) error: %v", raw, err)
		}
		if len(got) != 1 || got[0] != "x" {
			t.Errorf("parseBatch(%q) = %v", raw, got)
		}
	}
}

func TestParseBatch_NotArray(t *testing.T) {
	_, err := parseBatch(`{"translations": ["x"]}`)
	if !errors.Is(err, ErrNotArray) {
		t.Errorf("want ErrNotArray, got %v", err)
	}
}

func TestParseBatch_InvalidJSON(t *testing.T) {
	_, err := parseBatch("not json")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotArray) {
		t.Error("plain parse failure must not be classified as ErrNotArray")
	}
}

func TestParseBatch_CoercesNonStringItems(t *testing.T) {
	got, err := parseBatch(`["x", 42]`)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if got[1] != "42" {
		t.Errorf("got[1] = %q, want the raw JSON text", got[1])
	}
}

// ---------------------------------------------------------------------------
// TranslateValues
// ---------------------------------------------------------------------------

func TestTranslateValues_BatchCoverage(t *testing.T) {
	fake := &fakeCompleter{}
	tr := New(Options{Client: fake, FromLocale: "en", ToLocale: "de", BatchBudget: 8})

	values := []string{"aaaa", "bbbb", "cccc", "", "dddd"}
	got, err := tr.TranslateValues(context.Background(), values)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(got) != len(values) {
		t.Fatalf("len = %d, want %d", len(got), len(values))
	}
	want := []string{"T:aaaa", "T:bbbb", "T:cccc", "", "T:dddd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if len(fake.prompts) < 2 {
		t.Errorf("budget 8 should force multiple batches, got %d", len(fake.prompts))
	}
}

func TestTranslateValues_SkipsUnparseableBatch(t *testing.T) {
	call := 0
	fake := &fakeCompleter{fn: func(prompt string) (string, error) {
		call++
		if call == 1 {
			return "sorry, I cannot do that", nil
		}
		return echoTranslate(prompt)
	}}
	tr := New(Options{Client: fake, FromLocale: "en", ToLocale: "de", BatchBudget: 8})

	values := []string{"aaaa", "bbbb", "cccc", "dddd"}
	got, err := tr.TranslateValues(context.Background(), values)
	if err != nil {
		t.Fatalf("one bad batch must not fail the field: %v", err)
	}
	if len(got) != len(values) {
		t.Fatalf("len = %d, want %d", len(got), len(values))
	}
	// The skipped batch shifts later outputs left; reconciliation pads the
	// tail from the source values.
	if got[len(got)-1] != values[len(values)-1] {
		t.Errorf("tail should be padded from source, got %v", got)
	}
}

func TestTranslateValues_NonArrayAborts(t *testing.T) {
	fake := &fakeCompleter{fn: func(string) (string, error) {
		return `{"oops": true}`, nil
	}}
	tr := testTranslator(fake)

	_, err := tr.TranslateValues(context.Background(), []string{"a"})
	if !errors.Is(err, ErrNotArray) {
		t.Errorf("want ErrNotArray, got %v", err)
	}
}

func TestTranslateValues_RemoteErrorPropagates(t *testing.T) {
	boom := errors.New("proxy down")
	fake := &fakeCompleter{fn: func(string) (string, error) { return "", boom }}
	tr := testTranslator(fake)

	_, err := tr.TranslateValues(context.Background(), []string{"a"})
	if !errors.Is(err, boom) {
		t.Errorf("want remote error, got %v", err)
	}
}

func TestTranslateValues_Empty(t *testing.T) {
	tr := testTranslator(&fakeCompleter{})
	got, err := tr.TranslateValues(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}

// ---------------------------------------------------------------------------
// Prompt construction
// ---------------------------------------------------------------------------

func TestBuildBatchPrompt_Content(t *testing.T) {
	tr := New(Options{
		Client:        &fakeCompleter{},
		FromLocale:    "en",
		ToLocale:      "pt-BR",
		RecordContext: "a travel blog post",
	})
	prompt, err := tr.buildBatchPrompt([]string{"hello", ""}, 4, 10)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	for _, want := range []string{
		"from English to Brazilian Portuguese",
		"a travel blog post",
		"items 5 to 6 of 10",
		"exactly 2 translated strings",
		`["hello",""]`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildBatchPrompt_NoPositionLineForSingleBatch(t *testing.T) {
	tr := testTranslator(&fakeCompleter{})
	prompt, err := tr.buildBatchPrompt([]string{"a", "b"}, 0, 2)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if strings.Contains(prompt, "items 1 to") {
		t.Error("single-batch prompt should not carry the position line")
	}
}

// ---------------------------------------------------------------------------
// SplitText
// ---------------------------------------------------------------------------

func TestSplitText_Lossless(t *testing.T) {
	text := strings.Repeat("First paragraph line one.\nSecond line.\n\n", 50)
	chunks := SplitText(text, 300)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if len(c) > 300 {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(c))
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("concatenated chunks differ from the input")
	}
}

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	chunks := SplitText("short", 100)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Errorf("got %v", chunks)
	}
}

func TestSplitText_HardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := SplitText(text, 100)
	if strings.Join(chunks, "") != text {
		t.Error("hard cut lost characters")
	}
}
