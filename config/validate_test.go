package config_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sipward/sipward/config"
	"github.com/sipward/sipward/uri"
)

const testSource = config.Source("test")

func newValidator(t *testing.T, schema config.Schema, opts *config.ValidatorOptions) *config.Validator {
	t.Helper()

	if opts == nil {
		opts = &config.ValidatorOptions{}
	}
	if opts.Registry == nil {
		opts.Registry = config.NewRegistry(schema, nil)
	}
	return config.NewValidator(opts)
}

func TestCheck_NormalizesSnapshot(t *testing.T) {
	t.Parallel()

	v := newValidator(t, config.Schema{
		{Key: "abc", Type: config.TypeInteger, ListOf: true, SoftReload: true},
		{Key: "def", Type: config.TypeString, Normalize: true, SoftReload: true},
		{Key: "gih", Type: config.TypeSIPURL, SoftReload: true},
	}, nil)

	got, err := v.Check(config.Snapshot{
		{Key: "abc", Value: []any{9, 8, 7}, Source: testSource},
		{Key: "def", Value: "LowerCASEme", Source: testSource},
		{Key: "gih", Value: "sip:dontparse.example.org", Source: testSource},
	}, config.App("app1"), config.ReloadModeSoft)
	if err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}

	want := config.Snapshot{
		{Key: "abc", Value: []any{9, 8, 7}, Source: testSource},
		{Key: "def", Value: "lowercaseme", Source: testSource},
		// no normalization requested: the original string is kept
		{Key: "gih", Value: "sip:dontparse.example.org", Source: testSource},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Check() mismatch (-want +got):\n%s", diff)
	}
}

func TestCheck_Idempotent(t *testing.T) {
	t.Parallel()

	schema := config.Schema{
		{Key: "host", Type: config.TypeString, Normalize: true, SoftReload: true},
		{Key: "level", Type: config.TypeSymbol, SoftReload: true},
		{Key: "proxy", Type: config.TypeSIPDefaultedURL, Normalize: true, SoftReload: true},
	}
	v := newValidator(t, schema, nil)

	snapshot := config.Snapshot{
		{Key: "host", Value: "Example.ORG", Source: testSource},
		{Key: "level", Value: "debug", Source: testSource},
		{Key: "proxy", Value: "proxy.example.org:5060", Source: testSource},
	}

	once, err := v.Check(snapshot, config.App("app1"), config.ReloadModeSoft)
	if err != nil {
		t.Fatalf("first Check() error = %v, want nil", err)
	}
	twice, err := v.Check(once, config.App("app1"), config.ReloadModeSoft)
	if err != nil {
		t.Fatalf("second Check() error = %v, want nil", err)
	}

	if diff := cmp.Diff(once, twice, cmp.Comparer(func(a, b *uri.SIP) bool {
		return a.Equal(b)
	})); diff != "" {
		t.Fatalf("Check() not idempotent (-once +twice):\n%s", diff)
	}
}

func TestCheck_TypeErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		schema config.Schema
		entry  config.SnapshotEntry
		want   string
	}{
		{
			"list given where single symbol expected",
			config.Schema{{Key: "test", Type: config.TypeSymbol, SoftReload: true}},
			config.SnapshotEntry{Key: "test", Value: []any{true, false}, Source: config.Source("test_backend")},
			"parameter 'test' has invalid value ([true,false]) - expected symbol : invalid type",
		},
		{
			"string given where integer expected",
			config.Schema{{Key: "test", Type: config.TypeInteger, SoftReload: true}},
			config.SnapshotEntry{Key: "test", Value: "string", Source: config.Source("test_backend")},
			`parameter 'test' has invalid value ("string") - expected integer : invalid type`,
		},
		{
			"integer given where string expected",
			config.Schema{{Key: "test", Type: config.TypeString, SoftReload: true}},
			config.SnapshotEntry{Key: "test", Value: 17, Source: testSource},
			"parameter 'test' has invalid value (17) - expected string : invalid type",
		},
		{
			"one-character string",
			config.Schema{{Key: "test", Type: config.TypeString, SoftReload: true}},
			config.SnapshotEntry{Key: "test", Value: "x", Source: testSource},
			`parameter 'test' has invalid value ("x") - expected string : invalid string`,
		},
		{
			"bad element in list with 1-based index",
			config.Schema{{Key: "test", Type: config.TypeInteger, ListOf: true, SoftReload: true}},
			config.SnapshotEntry{Key: "test", Value: []any{1, 2, "three"}, Source: testSource},
			`parameter 'test' has invalid value (#3 in list ("three")) - expected integer : invalid type`,
		},
		{
			"singleton given where list expected",
			config.Schema{{Key: "test", Type: config.TypeInteger, ListOf: true, SoftReload: true}},
			config.SnapshotEntry{Key: "test", Value: 5, Source: testSource},
			"parameter 'test' has invalid value (5) - expected integer : list of integer expected",
		},
		{
			"unparsable url",
			config.Schema{{Key: "test", Type: config.TypeSIPURL, SoftReload: true}},
			config.SnapshotEntry{Key: "test", Value: "http://example.org", Source: testSource},
			`parameter 'test' has invalid value ("http://example.org") - expected sip-url : unparsable URL`,
		},
		{
			"unparsable regexp",
			config.Schema{{Key: "test", Type: config.TypeRegexRewrite, SoftReload: true}},
			config.SnapshotEntry{Key: "test", Value: config.Rewrite{Match: "+46(", Rewrite: "sip:+46\\1@example.org"}, Source: testSource},
			`parameter 'test' has invalid value (("+46(", "sip:+46\\1@example.org")) - expected regex-rewrite : unparsable regexp`,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			v := newValidator(t, c.schema, nil)
			_, err := v.Check(config.Snapshot{c.entry}, config.App("app1"), config.ReloadModeSoft)
			if err == nil {
				t.Fatalf("Check() error = nil, want %q", c.want)
			}
			if err.Error() != c.want {
				t.Fatalf("Check() error = %q, want %q", err.Error(), c.want)
			}
		})
	}
}

func TestCheck_Required(t *testing.T) {
	t.Parallel()

	schema := config.Schema{{Key: "req", Type: config.TypeString, Required: true, SoftReload: true}}
	v := newValidator(t, schema, nil)

	_, err := v.Check(config.Snapshot{
		{Key: "req", Value: "", Source: testSource},
	}, config.App("app1"), config.ReloadModeSoft)
	if err == nil || err.Error() != "Required parameter 'req' may not have empty value" {
		t.Fatalf("Check(empty) error = %v, want empty-value message", err)
	}

	_, err = v.Check(nil, config.App("app1"), config.ReloadModeSoft)
	if err == nil || err.Error() != "Required parameter 'req' not set" {
		t.Fatalf("Check(missing) error = %v, want not-set message", err)
	}

	// an unset default also means not set
	_, err = v.Check(config.DefaultsSnapshot(schema), config.App("app1"), config.ReloadModeSoft)
	if err == nil || err.Error() != "Required parameter 'req' not set" {
		t.Fatalf("Check(unset default) error = %v, want not-set message", err)
	}
}

func TestCheck_UnknownKey(t *testing.T) {
	t.Parallel()

	v := newValidator(t, config.Schema{}, nil)

	_, err := v.Check(config.Snapshot{
		{Key: "nosuchparam", Value: 1, Source: config.SourceFile},
	}, config.App("app1"), config.ReloadModeSoft)
	want := "Unknown configuration parameter nosuchparam (source: file)"
	if err == nil || err.Error() != want {
		t.Fatalf("Check() error = %v, want %q", err, want)
	}
}

func TestCheck_UnsetDefaultBypassesTypeCheck(t *testing.T) {
	t.Parallel()

	schema := config.Schema{{Key: "opt", Type: config.TypeInteger, SoftReload: true}}
	v := newValidator(t, schema, nil)

	got, err := v.Check(config.DefaultsSnapshot(schema), config.App("app1"), config.ReloadModeSoft)
	if err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}
	if len(got) != 1 || !config.IsUnset(got[0].Value) {
		t.Fatalf("Check() = %+v, want the unset marker preserved", got)
	}
}

type testLocalPolicy struct {
	validate       func(key config.Key, value any, src config.Source) (any, error)
	softReloadable func(key config.Key, value any) bool
}

func (p *testLocalPolicy) Validate(key config.Key, value any, src config.Source) (any, error) {
	return p.validate(key, value, src)
}

func (p *testLocalPolicy) SoftReloadable(key config.Key, value any) bool {
	return p.softReloadable(key, value)
}

func TestCheck_LocalKeys(t *testing.T) {
	t.Parallel()

	t.Run("delegated to policy", func(t *testing.T) {
		t.Parallel()

		local := &testLocalPolicy{
			validate: func(_ config.Key, value any, _ config.Source) (any, error) {
				return value.(int) * 2, nil
			},
		}
		v := newValidator(t, config.Schema{}, &config.ValidatorOptions{
			Registry: config.NewRegistry(nil, nil),
			Local:    local,
		})

		got, err := v.Check(config.Snapshot{
			{Key: "local_gateways", Value: 21, Source: testSource},
		}, config.App("app1"), config.ReloadModeHard)
		if err != nil {
			t.Fatalf("Check() error = %v, want nil", err)
		}
		if got[0].Value != 42 {
			t.Fatalf("local value = %v, want 42", got[0].Value)
		}
	})

	t.Run("policy error", func(t *testing.T) {
		t.Parallel()

		local := &testLocalPolicy{
			validate: func(_ config.Key, _ any, _ config.Source) (any, error) {
				return nil, errors.New("no such gateway")
			},
		}
		v := newValidator(t, config.Schema{}, &config.ValidatorOptions{
			Registry: config.NewRegistry(nil, nil),
			Local:    local,
		})

		_, err := v.Check(config.Snapshot{
			{Key: "local_gateways", Value: 21, Source: testSource},
		}, config.App("app1"), config.ReloadModeHard)
		want := "parameter 'local_gateways' has invalid value (21) - no such gateway"
		if err == nil || err.Error() != want {
			t.Fatalf("Check() error = %v, want %q", err, want)
		}
	})

	t.Run("policy panic is contained", func(t *testing.T) {
		t.Parallel()

		local := &testLocalPolicy{
			validate: func(_ config.Key, _ any, _ config.Source) (any, error) {
				panic("broken table")
			},
		}
		v := newValidator(t, config.Schema{}, &config.ValidatorOptions{
			Registry: config.NewRegistry(nil, nil),
			Local:    local,
		})

		_, err := v.Check(config.Snapshot{
			{Key: "local_gateways", Value: 21, Source: testSource},
		}, config.App("app1"), config.ReloadModeHard)
		want := "Could not parse configuration (parameter 'local_gateways', caught broken table)"
		if err == nil || err.Error() != want {
			t.Fatalf("Check() error = %v, want %q", err, want)
		}
	})

	t.Run("no policy accepts unchanged", func(t *testing.T) {
		t.Parallel()

		v := newValidator(t, config.Schema{}, &config.ValidatorOptions{
			Registry: config.NewRegistry(nil, nil),
		})

		got, err := v.Check(config.Snapshot{
			{Key: "local_gateways", Value: 21, Source: testSource},
		}, config.App("app1"), config.ReloadModeHard)
		if err != nil {
			t.Fatalf("Check() error = %v, want nil", err)
		}
		if got[0].Value != 21 {
			t.Fatalf("local value = %v, want 21", got[0].Value)
		}
	})
}
