// Package config — .fieldloc.yaml configuration file support.
//
// A .fieldloc.yaml in the project root is the sole source of truth for the
// translation setup: the proxy endpoint, the locale pair(s), and the field
// exclusions. Nothing is auto-detected — every locale must be explicitly
// declared.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .fieldloc.yaml structure.
type File struct {
	// Proxy configures the remote completion endpoint.
	Proxy Proxy `yaml:"proxy"`

	// SourceLocale is the locale translated from (default "en").
	SourceLocale string `yaml:"source_locale,omitempty"`
	// TargetLocales are the locales translated into.
	TargetLocales []string `yaml:"target_locales"`
	// ExcludedFields are field API keys never translated.
	ExcludedFields []string `yaml:"excluded_fields,omitempty"`

	// Record is the default record file passed to the translate command.
	Record string `yaml:"record,omitempty"`
	// RecordContext describes the record's subject matter; it is embedded in
	// every prompt to bias terminology.
	RecordContext string `yaml:"record_context,omitempty"`
	// Prompt is appended verbatim to every prompt (user override).
	Prompt string `yaml:"prompt,omitempty"`

	// Concurrency is the worker-pool size (default 3).
	Concurrency int `yaml:"concurrency,omitempty"`
	// BatchBudget is the character budget per request batch.
	BatchBudget int `yaml:"batch_budget,omitempty"`
	// ChunkSize is the character budget per long-text chunk.
	ChunkSize int `yaml:"chunk_size,omitempty"`

	// dir is where the file was found (for resolving relative paths).
	dir string
}

// Proxy holds the completion endpoint settings.
type Proxy struct {
	// URL is the chat-completions endpoint.
	URL string `yaml:"url"`
	// Model is the model identifier sent with every request.
	Model string `yaml:"model,omitempty"`
	// MaxTokens caps the completion length (0 omits the cap).
	MaxTokens int `yaml:"max_tokens,omitempty"`
	// Retries is the transient-failure retry count.
	Retries int `yaml:"retries,omitempty"`
}

// FileName is the config file name.
const FileName = ".fieldloc.yaml"

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load loads and validates .fieldloc.yaml from the given directory.
// Returns nil if no config file exists there.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	f.dir = dir

	f.applyDefaults()
	if err := f.validate(path); err != nil {
		return nil, err
	}
	return &f, nil
}

// Find walks up from startDir looking for .fieldloc.yaml and loads the first
// one found. Returns nil if no config file exists up to the filesystem root.
func Find(startDir string) (*File, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		f, err := Load(dir)
		if err != nil || f != nil {
			return f, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Dir returns the directory the config file was found in.
func (f *File) Dir() string { return f.dir }

// RecordPath resolves the configured record file relative to the config
// directory ("" when unset).
func (f *File) RecordPath() string {
	if f.Record == "" {
		return ""
	}
	if filepath.IsAbs(f.Record) {
		return f.Record
	}
	return filepath.Join(f.dir, f.Record)
}

func (f *File) applyDefaults() {
	if f.SourceLocale == "" {
		f.SourceLocale = "en"
	}
}

func (f *File) validate(path string) error {
	if strings.TrimSpace(f.Proxy.URL) == "" {
		return fmt.Errorf("%s: proxy.url is required", path)
	}
	if len(f.TargetLocales) == 0 {
		return fmt.Errorf("%s: target_locales must list at least one locale", path)
	}
	for _, loc := range f.TargetLocales {
		if strings.TrimSpace(loc) == "" {
			return fmt.Errorf("%s: target_locales contains an empty locale", path)
		}
	}
	if f.Concurrency < 0 {
		return fmt.Errorf("%s: concurrency must be positive", path)
	}
	return nil
}
