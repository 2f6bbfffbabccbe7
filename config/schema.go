package config

import (
	"cmp"
	"slices"
)

// SchemaEntry is the declarative description of one configuration key.
type SchemaEntry struct {
	// Key is unique within a schema.
	Key Key
	// Type is the element type of the value.
	Type Type
	// ListOf demands an ordered sequence of Type instead of a single
	// element.
	ListOf bool
	// Default is the value the defaults backend synthesizes when the
	// configuration file does not set the key; nil means no default.
	Default any
	// Required demands a present, non-empty effective value.
	Required bool
	// Normalize lets the validator substitute the canonical form of
	// the value (case folding, URL parsing).
	Normalize bool
	// SoftReload permits changing the value without a restart.
	SoftReload bool
	// NoDisclosure keeps the value out of normalization log lines.
	NoDisclosure bool
}

// Schema is a sequence of schema entries sorted by key. Keys are
// unique within one schema. Lookups are linear: schemas hold a few
// dozen entries and a sorted slice keeps diagnostics reproducible.
type Schema []SchemaEntry

// Entry returns the schema entry for the key.
func (s Schema) Entry(key Key) (SchemaEntry, bool) {
	for _, e := range s {
		if e.Key == key {
			return e, true
		}
	}
	return SchemaEntry{}, false
}

// Keys returns the keys of the schema in order.
func (s Schema) Keys() []Key {
	keys := make([]Key, len(s))
	for i, e := range s {
		keys[i] = e.Key
	}
	return keys
}

// Merge overlays an application schema onto a common one: iterating
// the application schema in declared order, each entry replaces the
// common entry with the same key or is appended. The result is sorted
// by key, so merging is idempotent.
func Merge(common, app Schema) Schema {
	out := slices.Clone(common)
	for _, e := range app {
		if i := slices.IndexFunc(out, func(o SchemaEntry) bool { return o.Key == e.Key }); i >= 0 {
			out[i] = e
		} else {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b SchemaEntry) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}
