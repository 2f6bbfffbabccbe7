package config

import (
	"context"
	"log/slog"
	"net"

	"github.com/sipward/sipward/uri"
)

// BackgroundCheck is a handle to a running background sanity check.
type BackgroundCheck struct {
	done chan struct{}
}

// Done is closed when the check finished.
func (b *BackgroundCheck) Done() <-chan struct{} { return b.done }

// Wait blocks until the check finished or the context is canceled.
func (b *BackgroundCheck) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartBackgroundCheck launches asynchronous sanity checks over a
// validated snapshot: every host referenced by a URL-typed value is
// resolved and failures are logged as warnings. Findings never fail
// the configuration; an unresolvable host today may resolve by the
// time traffic arrives.
func (v *Validator) StartBackgroundCheck(ctx context.Context, snapshot Snapshot, app App) *BackgroundCheck {
	b := &BackgroundCheck{done: make(chan struct{})}
	schema := v.registry.SchemaFor(app)

	go func() {
		defer close(b.done)
		for _, host := range referencedHosts(schema, snapshot) {
			if ctx.Err() != nil {
				return
			}
			v.checkHost(ctx, host)
		}
	}()
	return b
}

// referencedHosts collects the hosts of URL-typed values, in snapshot
// order, deduplicated. IP literals need no resolution and are skipped.
func referencedHosts(schema Schema, snapshot Snapshot) []string {
	var hosts []string
	seen := make(map[string]bool)

	add := func(host string) {
		if host == "" || seen[host] || net.ParseIP(host) != nil {
			return
		}
		seen[host] = true
		hosts = append(hosts, host)
	}

	for _, e := range snapshot {
		entry, ok := schema.Entry(e.Key)
		if !ok || !isURLType(entry.Type) {
			continue
		}
		for _, value := range valueElems(e.Value) {
			switch v := value.(type) {
			case *uri.SIP:
				add(v.Host)
			case string:
				if u, err := uri.ParseWithDefaultScheme("sip", v); err == nil {
					add(u.Host)
				}
			}
		}
	}
	return hosts
}

func isURLType(t Type) bool {
	return t == TypeSIPURL || t == TypeSIPDefaultedURL || t == TypeSIPSDefaultedURL
}

func valueElems(v any) []any {
	if list, ok := asList(v); ok {
		return list
	}
	return []any{v}
}

func (v *Validator) checkHost(ctx context.Context, host string) {
	if addrs, err := v.resolver.LookupAddrs(ctx, host); err != nil {
		v.log.LogAttrs(ctx, slog.LevelWarn,
			"configured host does not resolve",
			slog.String("host", host),
			slog.Any("error", err),
		)
	} else {
		v.log.LogAttrs(ctx, slog.LevelDebug,
			"configured host resolves",
			slog.String("host", host),
			slog.Int("addresses", len(addrs)),
		)
	}

	if svcs, err := v.resolver.LookupServices(ctx, host); err == nil && len(svcs) == 0 {
		v.log.LogAttrs(ctx, slog.LevelDebug,
			"configured host advertises no SIP services",
			slog.String("host", host),
		)
	}
}
