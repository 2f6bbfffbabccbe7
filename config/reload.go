package config

import (
	"fmt"

	"braces.dev/errtrace"

	"github.com/sipward/sipward/internal/errorutil"
)

// checkLoadable classifies the snapshot against the running
// application. A hard reload always succeeds: the application is
// restarting anyway. A soft reload permits an entry when the schema
// marks it soft-reloadable, when its value equals the current live
// value, or when the local policy vouches for a local key.
func (v *Validator) checkLoadable(snapshot Snapshot, schema Schema, mode ReloadMode) error {
	if mode == ReloadModeHard {
		return nil
	}

	for _, e := range snapshot {
		if entry, ok := schema.Entry(e.Key); ok {
			if entry.SoftReload {
				continue
			}
			if err := v.checkLoadableHardKey(e); err != nil {
				return errtrace.Wrap(err)
			}
			continue
		}

		if e.Key.IsLocal() {
			if v.local == nil || v.local.SoftReloadable(e.Key, e.Value) {
				continue
			}
			return errtrace.Wrap(Error(fmt.Sprintf(
				"Parameter '%s' can not be changed without restarting (source: %s)",
				e.Key, e.Source)))
		}

		// the unknown-key check ran before loadability; reaching this
		// point means the validator itself is broken
		panic(errorutil.Errorf(
			"loadability check reached unknown non-local parameter %s", e.Key))
	}
	return nil
}

// checkLoadableHardKey permits a hard-reload-only key when its value
// did not actually change. No live value means the key was never set;
// applying it fresh is fine.
func (v *Validator) checkLoadableHardKey(e SnapshotEntry) error {
	if v.env == nil {
		return nil
	}
	current, ok := v.env.Lookup(e.Key)
	if !ok {
		return nil
	}
	if valuesEqual(e.Value, current) {
		return nil
	}
	return errtrace.Wrap(Error(fmt.Sprintf(
		"Parameter '%s' can not be changed without restarting (source: %s, current: %s, requested: %s)",
		e.Key, e.Source, renderValue(current), renderValue(e.Value))))
}
