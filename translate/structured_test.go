// Package translate contains tests for the structured-document orchestrator.
package translate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/fieldloc/fieldloc/schema"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func spanNode(value string) map[string]any {
	return map[string]any{"type": "span", "value": value}
}

func paraNode(values ...string) map[string]any {
	children := make([]any, len(values))
	for i, v := range values {
		children[i] = spanNode(v)
	}
	return map[string]any{"type": "paragraph", "id": "p-" + values[0], "children": children}
}

func blockNode(title string) map[string]any {
	return map[string]any{
		"type": "block",
		"item": map[string]any{
			"id":         "itm-1",
			"itemTypeId": "model-7",
			"attributes": map[string]any{"title": title},
		},
	}
}

func envelope(children ...any) map[string]any {
	return map[string]any{
		"schema":   "dast",
		"document": map[string]any{"children": children},
	}
}

func structuredTranslate(t *testing.T, value any) any {
	t.Helper()
	tr := testTranslator(&fakeCompleter{})
	out, err := tr.Translate(context.Background(), value, schema.KindStructured)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return out
}

// ---------------------------------------------------------------------------
// Orchestrator behavior
// ---------------------------------------------------------------------------

func TestStructured_TranslatesTextLeaves(t *testing.T) {
	out := structuredTranslate(t, []any{paraNode("hello", "world")})

	nodes, ok := out.([]any)
	if !ok || len(nodes) != 1 {
		t.Fatalf("output shape: %#v", out)
	}
	para := nodes[0].(map[string]any)
	children := para["children"].([]any)
	if got := children[0].(map[string]any)["value"]; got != "T:hello" {
		t.Errorf("first leaf = %v, want T:hello", got)
	}
	if got := children[1].(map[string]any)["value"]; got != "T:world" {
		t.Errorf("second leaf = %v, want T:world", got)
	}
}

func TestStructured_EnvelopePreserved(t *testing.T) {
	out := structuredTranslate(t, envelope(paraNode("hello")))

	env, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("enveloped input must produce enveloped output, got %T", out)
	}
	if env["schema"] != "dast" {
		t.Errorf("schema = %v", env["schema"])
	}
	if _, ok := env["document"].(map[string]any); !ok {
		t.Error("document wrapper lost")
	}
}

func TestStructured_BareArrayStaysBare(t *testing.T) {
	out := structuredTranslate(t, []any{paraNode("hello")})
	if _, ok := out.([]any); !ok {
		t.Fatalf("bare input must produce a bare array, got %T", out)
	}
}

func TestStructured_BlockRepositioning(t *testing.T) {
	out := structuredTranslate(t, []any{
		paraNode("t0"),
		blockNode("b1"),
		paraNode("t2"),
		blockNode("b3"),
	})

	nodes := out.([]any)
	if len(nodes) != 4 {
		t.Fatalf("node count = %d, want 4", len(nodes))
	}
	for i, wantBlock := range []bool{false, true, false, true} {
		m := nodes[i].(map[string]any)
		isBlock := m["type"] == "block"
		if isBlock != wantBlock {
			t.Errorf("position %d: block = %v, want %v", i, isBlock, wantBlock)
		}
		if _, has := m["originalIndex"]; has {
			t.Errorf("position %d: originalIndex annotation leaked into output", i)
		}
	}
}

func TestStructured_BlockPayloadTranslated(t *testing.T) {
	out := structuredTranslate(t, []any{paraNode("t0"), blockNode("Block title")})

	nodes := out.([]any)
	item := nodes[1].(map[string]any)["item"].(map[string]any)
	attrs := item["attributes"].(map[string]any)
	if attrs["title"] != "T:Block title" {
		t.Errorf("block title = %v, want T:Block title", attrs["title"])
	}
	// structural keys must survive untouched
	if item["itemTypeId"] != "model-7" {
		t.Errorf("itemTypeId = %v", item["itemTypeId"])
	}
}

func TestStructured_BlockOnlyDocumentStillTranslated(t *testing.T) {
	out := structuredTranslate(t, []any{blockNode("only block")})

	nodes, ok := out.([]any)
	if !ok || len(nodes) != 1 {
		t.Fatalf("output shape: %#v", out)
	}
	item := nodes[0].(map[string]any)["item"].(map[string]any)
	attrs := item["attributes"].(map[string]any)
	if attrs["title"] != "T:only block" {
		t.Errorf("block-only document not translated: %v", attrs["title"])
	}
}

func TestStructured_IDsStripped(t *testing.T) {
	out := structuredTranslate(t, []any{paraNode("hello")})

	para := out.([]any)[0].(map[string]any)
	if _, has := para["id"]; has {
		t.Error("id attribute survived translation")
	}
}

func TestStructured_PassThroughShapes(t *testing.T) {
	tr := testTranslator(&fakeCompleter{})
	for _, v := range []any{nil, "plain string", []any{}, map[string]any{"x": 1}} {
		out, err := tr.Translate(context.Background(), v, schema.KindStructured)
		if err != nil {
			t.Fatalf("Translate(%v): %v", v, err)
		}
		if !reflect.DeepEqual(out, v) {
			t.Errorf("value %v should pass through unchanged, got %v", v, out)
		}
	}
}

func TestStructured_RemoteFailureReturnsOriginal(t *testing.T) {
	fake := &fakeCompleter{fn: func(string) (string, error) {
		return "", errors.New("proxy down")
	}}
	tr := testTranslator(fake)

	original := []any{paraNode("hello")}
	out, err := tr.Translate(context.Background(), original, schema.KindStructured)
	if err != nil {
		t.Fatalf("structured translation must not propagate errors: %v", err)
	}
	if !reflect.DeepEqual(out, original) {
		t.Errorf("failed translation must return the original value, got %v", out)
	}
}

func TestStructured_NonArrayResponseReturnsOriginal(t *testing.T) {
	fake := &fakeCompleter{fn: func(string) (string, error) {
		return `{"not": "an array"}`, nil
	}}
	tr := testTranslator(fake)

	original := []any{paraNode("hello")}
	out, err := tr.Translate(context.Background(), original, schema.KindStructured)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(out, original) {
		t.Error("wrong-shape response must abort the field and keep the original")
	}
}

// ---------------------------------------------------------------------------
// Nested documents and the depth cap
// ---------------------------------------------------------------------------

func TestStructured_NestedDocumentInBlock(t *testing.T) {
	blk := map[string]any{
		"type": "block",
		"item": map[string]any{
			"id": "itm",
			"attributes": map[string]any{
				"body": envelope(paraNode("nested text")),
			},
		},
	}
	out := structuredTranslate(t, []any{paraNode("outer"), blk})

	nodes := out.([]any)
	attrs := nodes[1].(map[string]any)["item"].(map[string]any)["attributes"].(map[string]any)
	body := attrs["body"].(map[string]any)
	inner := body["document"].(map[string]any)["children"].([]any)
	leaf := inner[0].(map[string]any)["children"].([]any)[0].(map[string]any)
	if leaf["value"] != "T:nested text" {
		t.Errorf("nested document leaf = %v, want T:nested text", leaf["value"])
	}
}

func TestStructured_DepthCapStopsRecursion(t *testing.T) {
	blk := map[string]any{
		"type": "block",
		"item": map[string]any{
			"attributes": map[string]any{
				"body": envelope(paraNode("too deep")),
			},
		},
	}
	var logged []string
	tr := New(Options{
		Client:     &fakeCompleter{},
		FromLocale: "en",
		ToLocale:   "it",
		MaxDepth:   1,
		OnError:    func(format string, args ...any) { logged = append(logged, format) },
	})

	out, err := tr.Translate(context.Background(), []any{blk}, schema.KindStructured)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	nodes := out.([]any)
	attrs := nodes[0].(map[string]any)["item"].(map[string]any)["attributes"].(map[string]any)
	inner := attrs["body"].(map[string]any)["document"].(map[string]any)["children"].([]any)
	leaf := inner[0].(map[string]any)["children"].([]any)[0].(map[string]any)
	if leaf["value"] != "too deep" {
		t.Errorf("past the depth cap the value must stay untranslated, got %v", leaf["value"])
	}
	found := false
	for _, msg := range logged {
		if strings.Contains(msg, "nested deeper") {
			found = true
		}
	}
	if !found {
		t.Error("depth-cap hit should be logged")
	}
}
