// Package config contains tests for .fieldloc.yaml loading.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `proxy:
  url: https://proxy.example.com/v1/chat/completions
  model: small-fast
  max_tokens: 4096
source_locale: en
target_locales: [it, pt-BR]
excluded_fields: [slug, internal_notes]
record: record.json
record_context: "Product pages for a bicycle shop"
concurrency: 2
batch_budget: 2000
`

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, sampleConfig)

	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f == nil {
		t.Fatal("Load returned nil for an existing file")
	}
	if f.Proxy.URL != "https://proxy.example.com/v1/chat/completions" {
		t.Errorf("proxy url = %q", f.Proxy.URL)
	}
	if f.Proxy.Model != "small-fast" || f.Proxy.MaxTokens != 4096 {
		t.Errorf("proxy = %+v", f.Proxy)
	}
	if f.SourceLocale != "en" {
		t.Errorf("source = %q", f.SourceLocale)
	}
	if len(f.TargetLocales) != 2 || f.TargetLocales[1] != "pt-BR" {
		t.Errorf("targets = %v", f.TargetLocales)
	}
	if len(f.ExcludedFields) != 2 {
		t.Errorf("excluded = %v", f.ExcludedFields)
	}
	if f.Concurrency != 2 || f.BatchBudget != 2000 {
		t.Errorf("tuning = %d/%d", f.Concurrency, f.BatchBudget)
	}
	if f.RecordPath() != filepath.Join(dir, "record.json") {
		t.Errorf("record path = %q", f.RecordPath())
	}
}

func TestLoad_Missing(t *testing.T) {
	f, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f != nil {
		t.Errorf("missing file should load as nil, got %+v", f)
	}
}

func TestLoad_DefaultSourceLocale(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "proxy:\n  url: https://p.example.com\ntarget_locales: [it]\n")

	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.SourceLocale != "en" {
		t.Errorf("default source = %q, want en", f.SourceLocale)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing proxy url", "target_locales: [it]\n"},
		{"no targets", "proxy:\n  url: https://p.example.com\n"},
		{"empty target", "proxy:\n  url: https://p.example.com\ntarget_locales: [\"\"]\n"},
		{"bad yaml", "proxy: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.yaml)
			if _, err := Load(dir); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Find
// ---------------------------------------------------------------------------

func TestFind_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, sampleConfig)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	f, err := Find(nested)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if f == nil {
		t.Fatal("Find missed the config file in an ancestor directory")
	}
	if f.Dir() != root {
		t.Errorf("Dir = %q, want %q", f.Dir(), root)
	}
}

func TestFind_NotFound(t *testing.T) {
	f, err := Find(t.TempDir())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if f != nil {
		t.Errorf("expected nil, got %+v", f)
	}
}
