package compat

import (
	"sync"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
	"mercator-hq/courier/pkg/export/generator"
)

// HeaderTransform returns the effective columns for a format. It must not
// depend on any record.
type HeaderTransform func(def *format.Definition, cols format.Columns) format.Columns

// RowTransform rewrites one generated row. Keys it does not set stay blank.
type RowTransform func(def *format.Definition, row generator.Row, src generator.Source) generator.Row

type formatID struct {
	recordType export.RecordType
	key        string
}

type entry struct {
	headers []HeaderTransform
	rows    []RowTransform
}

// Registry holds ordered header and row transforms per format key. It
// implements generator.Transforms.
type Registry struct {
	mu      sync.RWMutex
	entries map[formatID]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[formatID]*entry)}
}

// NewDefaultRegistry creates a registry with the legacy transforms installed.
func NewDefaultRegistry(opts LegacyOptions) *Registry {
	r := NewRegistry()
	RegisterLegacy(r, opts)
	return r
}

func (r *Registry) entry(t export.RecordType, key string) *entry {
	id := formatID{t, key}
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	return e
}

// RegisterHeader appends a header transform for a format key.
func (r *Registry) RegisterHeader(t export.RecordType, key string, fn HeaderTransform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(t, key)
	e.headers = append(e.headers, fn)
}

// RegisterRow appends a row transform for a format key.
func (r *Registry) RegisterRow(t export.RecordType, key string, fn RowTransform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entry(t, key)
	e.rows = append(e.rows, fn)
}

// Has reports whether any transform is registered for the format.
func (r *Registry) Has(t export.RecordType, key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[formatID{t, key}]
	return ok
}

// Columns implements generator.Transforms.
func (r *Registry) Columns(def *format.Definition, cols format.Columns) format.Columns {
	r.mu.RLock()
	e := r.entries[formatID{def.RecordType, def.Key}]
	r.mu.RUnlock()
	if e == nil {
		return cols
	}
	for _, fn := range e.headers {
		cols = fn(def, cols)
	}
	return cols
}

// Row implements generator.Transforms.
func (r *Registry) Row(def *format.Definition, row generator.Row, src generator.Source) generator.Row {
	r.mu.RLock()
	e := r.entries[formatID{def.RecordType, def.Key}]
	r.mu.RUnlock()
	if e == nil {
		return row
	}
	for _, fn := range e.rows {
		row = fn(def, row, src)
	}
	return row
}

// insertAfter returns cols with add inserted after the column keyed after,
// or appended when after is absent.
func insertAfter(cols format.Columns, after string, add ...format.Column) format.Columns {
	i := cols.Index(after)
	if i < 0 {
		return append(cols.Clone(), add...)
	}
	out := make(format.Columns, 0, len(cols)+len(add))
	out = append(out, cols[:i+1]...)
	out = append(out, add...)
	return append(out, cols[i+1:]...)
}

// replaceColumns swaps the first of keys for add and drops the rest.
func replaceColumns(cols format.Columns, keys []string, add ...format.Column) format.Columns {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	out := make(format.Columns, 0, len(cols)+len(add))
	inserted := false
	for _, col := range cols {
		if !drop[col.Key] {
			out = append(out, col)
			continue
		}
		if !inserted {
			out = append(out, add...)
			inserted = true
		}
	}
	if !inserted {
		out = append(out, add...)
	}
	return out
}
