// Package recordfile implements reading and writing of local record files, a
// file-backed stand-in for a live CMS record.
//
// The expected file format is:
//
//	{
//	    "fields": [
//	        { "apiKey": "title", "editorType": "single_line", "localized": true }
//	    ],
//	    "values": {
//	        "title": { "en": "Hello", "it": "Ciao" }
//	    }
//	}
//
// Missing locales mean untranslated. The file is rewritten atomically on
// every stored value so an interrupted run never leaves a half-written
// record behind.
package recordfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fieldloc/fieldloc/schema"
)

// File represents a parsed record file. It satisfies scheduler.Host.
type File struct {
	path string

	mu     sync.Mutex
	fields []schema.Field
	values map[string]map[string]any

	// OnNotify receives user-visible notices. Nil discards them.
	OnNotify func(kind, message string)
}

type document struct {
	Fields []schema.Field            `json:"fields"`
	Values map[string]map[string]any `json:"values"`
}

// ParseFile reads and parses a record file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	f.path = path
	return f, nil
}

// Parse parses record JSON data.
func Parse(data []byte) (*File, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if doc.Values == nil {
		doc.Values = make(map[string]map[string]any)
	}
	return &File{fields: doc.Fields, values: doc.Values}, nil
}

// Path returns the file the record was read from ("" when parsed from
// memory).
func (f *File) Path() string { return f.path }

// Fields returns the record's field metadata.
func (f *File) Fields() ([]schema.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]schema.Field, len(f.fields))
	copy(out, f.fields)
	return out, nil
}

// Value returns the stored value of a field in one locale, nil when absent.
func (f *File) Value(fieldKey, locale string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[fieldKey][locale], nil
}

// SetValue stores a value and rewrites the file.
func (f *File) SetValue(_ context.Context, fieldKey, locale string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.values[fieldKey] == nil {
		f.values[fieldKey] = make(map[string]any)
	}
	f.values[fieldKey][locale] = value

	if f.path == "" {
		return nil
	}
	return f.write()
}

// Notify forwards a notice to OnNotify.
func (f *File) Notify(kind, message string) {
	if f.OnNotify != nil {
		f.OnNotify(kind, message)
	}
}

// WriteFile writes the record to disk at a new path and remembers it for
// subsequent writes.
func (f *File) WriteFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path = path
	return f.write()
}

// write marshals the record and replaces the file via a temp-and-rename so
// readers never observe a partial document. Callers hold f.mu.
func (f *File) write() error {
	data, err := json.MarshalIndent(document{Fields: f.fields, Values: f.values}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".fieldloc-record-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}
