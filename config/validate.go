package config

import (
	"context"
	"fmt"
	"log/slog"

	"braces.dev/errtrace"

	"github.com/sipward/sipward/dns"
	"github.com/sipward/sipward/log"
)

// EnvSource exposes the live configuration values of the running
// application to the reload classifier.
type EnvSource interface {
	// Lookup returns the current live value of the key.
	// ok = false means the key is not set or the capability is not
	// available.
	Lookup(key Key) (value any, ok bool)
}

// LocalPolicy is the bounded extension point for site-local
// configuration keys (the "local_" namespace). It is owned by the
// application shell, not by this package.
type LocalPolicy interface {
	// Validate checks and possibly normalizes a local key.
	Validate(key Key, value any, src Source) (any, error)
	// SoftReloadable reports whether a changed local key may be
	// applied without a restart.
	SoftReloadable(key Key, value any) bool
}

// ValidatorOptions are the options for a [Validator].
type ValidatorOptions struct {
	// Registry resolves per-application schemas.
	// If nil, the [DefaultRegistry] is used.
	Registry *Registry
	// Env exposes live values for soft-reload comparison.
	// If nil, every lookup misses and soft reloads of hard keys are
	// permitted only when no live value exists.
	Env EnvSource
	// Local handles "local_" keys. If nil, local keys are accepted
	// unchanged and considered soft-reloadable.
	Local LocalPolicy
	// Resolver backs the background sanity check.
	// If nil, the [dns.DefaultResolver] is used.
	Resolver *dns.Resolver
	// Logger is the logger. If nil, the [log.Default] is used.
	Logger *slog.Logger
}

func (o *ValidatorOptions) registry() *Registry {
	if o == nil || o.Registry == nil {
		return DefaultRegistry()
	}
	return o.Registry
}

func (o *ValidatorOptions) env() EnvSource {
	if o == nil {
		return nil
	}
	return o.Env
}

func (o *ValidatorOptions) local() LocalPolicy {
	if o == nil {
		return nil
	}
	return o.Local
}

func (o *ValidatorOptions) resolver() *dns.Resolver {
	if o == nil || o.Resolver == nil {
		return dns.DefaultResolver()
	}
	return o.Resolver
}

func (o *ValidatorOptions) log() *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// Validator drives schemas over configuration snapshots. It is
// stateless and re-entrant: every call works on its own data.
type Validator struct {
	registry *Registry
	env      EnvSource
	local    LocalPolicy
	resolver *dns.Resolver
	log      *slog.Logger
}

// NewValidator creates a new [Validator].
// Options are optional, if nil, default values are used (see [ValidatorOptions]).
func NewValidator(opts *ValidatorOptions) *Validator {
	return &Validator{
		registry: opts.registry(),
		env:      opts.env(),
		local:    opts.local(),
		resolver: opts.resolver(),
		log:      opts.log(),
	}
}

// Check validates a snapshot against the schema of the application and
// returns the normalized snapshot, order preserved. It fails fast: the
// first structural error is returned as a single human-readable
// message and nothing is aggregated.
func (v *Validator) Check(snapshot Snapshot, app App, mode ReloadMode) (Snapshot, error) {
	schema := v.registry.SchemaFor(app)

	normalized := make(Snapshot, 0, len(snapshot))
	for _, e := range snapshot {
		ne, err := v.checkEntry(schema, e)
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		normalized = append(normalized, ne)
	}

	if err := v.checkRequired(schema, normalized); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if err := v.checkLoadable(normalized, schema, mode); err != nil {
		return nil, errtrace.Wrap(err)
	}
	return normalized, nil
}

func (v *Validator) checkEntry(schema Schema, e SnapshotEntry) (SnapshotEntry, error) {
	if entry, ok := schema.Entry(e.Key); ok {
		// "not actually set" from the defaults backend: nothing to check
		if IsUnset(e.Value) && e.Source == SourceDefault {
			return e, nil
		}
		// empty values carry nothing to type check; the required
		// verification is the only gate that can reject them
		if isEmptyValue(e.Value) {
			return e, nil
		}

		nv, terr := checkValue(entry, e.Value)
		if terr != nil {
			return SnapshotEntry{}, errtrace.Wrap(Error(terr.message(e.Key, entry.Type)))
		}
		if !valuesEqual(e.Value, nv) {
			v.logNormalized(entry, e.Value, nv)
		}
		e.Value = nv
		return e, nil
	}

	if e.Key.IsLocal() {
		return errtrace.Wrap2(v.checkLocalEntry(e))
	}

	return SnapshotEntry{}, errtrace.Wrap(Error(fmt.Sprintf(
		"Unknown configuration parameter %s (source: %s)", e.Key, e.Source)))
}

// checkLocalEntry delegates a "local_" key to the local policy.
// A panicking policy is contained: the panic is logged with its value
// and turned into a validation failure of the usual single-line shape.
func (v *Validator) checkLocalEntry(e SnapshotEntry) (ne SnapshotEntry, err error) {
	if v.local == nil {
		return e, nil
	}

	defer func() {
		if r := recover(); r != nil {
			v.log.LogAttrs(context.Background(), slog.LevelError,
				"local validator panicked",
				slog.String("key", string(e.Key)),
				slog.Any("panic", log.FmtValue(r, false)),
			)
			err = errtrace.Wrap(Error(fmt.Sprintf(
				"Could not parse configuration (parameter '%s', caught %v)", e.Key, r)))
		}
	}()

	nv, verr := v.local.Validate(e.Key, e.Value, e.Source)
	if verr != nil {
		return SnapshotEntry{}, errtrace.Wrap(Error(fmt.Sprintf(
			"parameter '%s' has invalid value (%s) - %s", e.Key, renderValue(e.Value), verr)))
	}
	e.Value = nv
	return e, nil
}

func (v *Validator) logNormalized(entry SchemaEntry, before, after any) {
	if entry.NoDisclosure {
		v.log.LogAttrs(context.Background(), slog.LevelDebug,
			"normalized configuration parameter",
			slog.String("key", string(entry.Key)),
		)
		return
	}
	v.log.LogAttrs(context.Background(), slog.LevelDebug,
		"normalized configuration parameter",
		slog.String("key", string(entry.Key)),
		slog.String("before", renderValue(before)),
		slog.String("after", renderValue(after)),
	)
}

func (v *Validator) checkRequired(schema Schema, snapshot Snapshot) error {
	for _, entry := range schema {
		if !entry.Required {
			continue
		}

		e, ok := snapshot.Get(entry.Key)
		if !ok || IsUnset(e.Value) {
			return errtrace.Wrap(Error(fmt.Sprintf(
				"Required parameter '%s' not set", entry.Key)))
		}
		if isEmptyValue(e.Value) {
			return errtrace.Wrap(Error(fmt.Sprintf(
				"Required parameter '%s' may not have empty value", entry.Key)))
		}
	}
	return nil
}
