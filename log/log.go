// Package log holds the preconfigured slog loggers of the module.
//
// The logging stack itself is deliberately conventional: slog with a
// console handler for operation, devslog for development and a swap-in
// default, all behind a shared formatter chain.
package log

//go:generate errtrace -w .

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang-cz/devslog"
	conslog "github.com/phsym/console-slog"
	slogfmt "github.com/samber/slog-formatter"
)

// Every logger shares one formatter chain: errors unwrapped into an
// "error" attribute, resolver results rendered compactly.
var newHandler = slogfmt.NewFormatterHandler(
	slogfmt.ErrorFormatter("error"),
	slogfmt.FormatByType(func(addr netip.Addr) slog.Value {
		return slog.StringValue(addr.String())
	}),
	slogfmt.FormatByType(func(addr net.Addr) slog.Value {
		return slog.GroupValue(
			slog.String("network", addr.Network()),
			slog.String("addr", addr.String()),
		)
	}),
)

func newLogger(h slog.Handler) *slog.Logger { return slog.New(newHandler(h)) }

var console = newLogger(conslog.NewHandler(os.Stdout, &conslog.HandlerOptions{
	AddSource:  true,
	Level:      slog.LevelDebug,
	TimeFormat: time.RFC3339Nano,
}))

// Console returns the logger a running daemon writes with.
func Console() *slog.Logger { return console }

var develop = newLogger(devslog.NewHandler(os.Stdout, &devslog.Options{
	HandlerOptions: &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	},
	SortKeys:   true,
	TimeFormat: time.RFC3339Nano,
}))

// Develop returns the logger with the verbose output used during
// development.
func Develop() *slog.Logger { return develop }

type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (noopHandler) Handle(context.Context, slog.Record) error { return nil }

func (h noopHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h noopHandler) WithGroup(string) slog.Handler { return h }

var noop = slog.New(noopHandler{})

// Noop returns the logger that discards everything.
func Noop() *slog.Logger { return noop }

var _default atomic.Pointer[slog.Logger]

func init() {
	_default.Store(noop)
}

// Default returns the logger components fall back to when none is
// configured. It starts out as [Noop]; the application shell decides
// what actually gets written.
func Default() *slog.Logger { return _default.Load() }

// SetDefault swaps the fallback logger. A nil argument restores [Noop].
func SetDefault(l *slog.Logger) {
	if l == nil {
		l = noop
	}
	_default.Store(l)
}

type fmtValue struct {
	v        any
	goSyntax bool
}

func (v fmtValue) LogValue() slog.Value {
	verb := "%+v"
	if v.goSyntax {
		verb = "%#v"
	}
	return slog.StringValue(fmt.Sprintf(verb, v.v))
}

// FmtValue defers fmt rendering of v to the moment the record is
// actually written; goSyntax selects '%#v' over '%+v'.
func FmtValue(v any, goSyntax bool) slog.LogValuer { return fmtValue{v, goSyntax} }
