// Package config implements the configuration validation engine of the
// proxy: declarative per-key schemas, type-directed validation and
// normalization of configuration snapshots, and the soft/hard reload
// classification that decides whether a new snapshot can be applied
// without a restart.
package config

//go:generate errtrace -w .

import (
	"strings"

	"github.com/sipward/sipward/internal/errorutil"
)

// Error represents a configuration error.
type Error = errorutil.Error

// Key is the symbolic identifier of one configuration parameter.
type Key string

// LocalPrefix marks keys owned by site-local extensions. Such keys need
// no schema entry; their validation is delegated to the [LocalPolicy].
const LocalPrefix = "local_"

// IsLocal reports whether the key belongs to the site-local namespace.
func (k Key) IsLocal() bool { return strings.HasPrefix(string(k), LocalPrefix) }

// Source tags the backend a configuration value came from.
type Source string

const (
	// SourceFile marks values read from the configuration file.
	SourceFile Source = "file"
	// SourceDefault marks values synthesized from schema defaults.
	SourceDefault Source = "default"
)

// Type enumerates the value types a schema entry can demand.
type Type string

const (
	TypeSymbol           Type = "symbol"
	TypeInteger          Type = "integer"
	TypeBoolean          Type = "boolean"
	TypeString           Type = "string"
	TypeOpaque           Type = "opaque"
	TypeRegexRewrite     Type = "regex-rewrite"
	TypeRegexMatch       Type = "regex-match"
	TypeSIPURL           Type = "sip-url"
	TypeSIPDefaultedURL  Type = "sip-defaulted-url"
	TypeSIPSDefaultedURL Type = "sips-defaulted-url"
)

// ReloadMode tells the validator whether the snapshot is applied on a
// full restart or on a running application.
type ReloadMode string

const (
	// ReloadModeHard is a full restart: every change is permitted.
	ReloadModeHard ReloadMode = "hard"
	// ReloadModeSoft is a re-evaluation without restart: only keys
	// marked soft-reloadable may change.
	ReloadModeSoft ReloadMode = "soft"
)

// SnapshotEntry is one runtime configuration value.
type SnapshotEntry struct {
	Key    Key
	Value  any
	Source Source
}

// Snapshot is an ordered sequence of configuration values. The
// validator preserves the order; uniqueness of keys across backends is
// the backends' concern.
type Snapshot []SnapshotEntry

// Get returns the first entry with the key.
func (s Snapshot) Get(key Key) (SnapshotEntry, bool) {
	for _, e := range s {
		if e.Key == key {
			return e, true
		}
	}
	return SnapshotEntry{}, false
}
