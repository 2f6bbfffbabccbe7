package config

import (
	"github.com/sipward/sipward/internal/syncutil"
)

// LiveEnv holds the normalized configuration of the running
// application. It backs the [EnvSource] capability of the reload
// classifier and serves reads from any goroutine.
type LiveEnv struct {
	vals syncutil.RWMap[Key, any]
}

// NewLiveEnv creates an empty [LiveEnv].
func NewLiveEnv() *LiveEnv { return &LiveEnv{} }

// Lookup implements [EnvSource].
func (e *LiveEnv) Lookup(key Key) (any, bool) {
	if e == nil {
		return nil, false
	}
	return e.vals.Get(key)
}

// Install replaces the live values with a validated snapshot. Entries
// carrying [Unset] are dropped: an unset key reads as absent.
func (e *LiveEnv) Install(snapshot Snapshot) {
	vals := make(map[Key]any, len(snapshot))
	for _, entry := range snapshot {
		if IsUnset(entry.Value) {
			continue
		}
		vals[entry.Key] = entry.Value
	}
	e.vals.Replace(vals)
}

// Len returns the number of live keys.
func (e *LiveEnv) Len() int {
	if e == nil {
		return 0
	}
	return e.vals.Len()
}
