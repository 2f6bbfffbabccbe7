package config

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/sipward/sipward/internal/util"
	"github.com/sipward/sipward/uri"
)

// Symbol is a symbolic atom value.
type Symbol string

// Rewrite is the (pattern, replacement) pair of a regex-rewrite value.
type Rewrite struct {
	Match   string
	Rewrite string
}

// MatchAction is the (pattern, action) pair of a regex-match value.
// The action side is not constrained by the validator.
type MatchAction struct {
	Match  string
	Action any
}

type unsetValue struct{}

func (unsetValue) String() string { return "undefined" }

// Unset marks a parameter that is not actually set. The defaults
// backend produces it for keys without a default; the validator lets
// it through without type checking.
var Unset unsetValue

// IsUnset reports whether the value is the [Unset] marker.
func IsUnset(v any) bool {
	_, ok := v.(unsetValue)
	return ok
}

// isEmptyValue reports whether the value is set but empty. Empty
// values bypass type checking: they carry no elements to check and are
// only rejected by the required-parameter verification.
func isEmptyValue(v any) bool {
	switch v := v.(type) {
	case string:
		return v == ""
	case Symbol:
		return v == ""
	}
	if list, ok := asList(v); ok {
		return len(list) == 0
	}
	return false
}

// asList reconciles the common sequence shapes backends produce into a
// uniform []any. A plain string is NOT a sequence, even though some
// source languages would treat it as one.
func asList(v any) ([]any, bool) {
	switch v := v.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	case []Symbol:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	case []Rewrite:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	case []MatchAction:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

// renderValue renders a value for diagnostics: strings quoted, lists
// bracketed with comma-separated elements, everything else as-is.
func renderValue(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case Symbol:
		return string(v)
	case unsetValue:
		return v.String()
	case *uri.SIP:
		return strconv.Quote(v.String())
	case Rewrite:
		return fmt.Sprintf("(%q, %q)", v.Match, v.Rewrite)
	case MatchAction:
		return fmt.Sprintf("(%q, %s)", v.Match, renderValue(v.Action))
	}

	if list, ok := asList(v); ok {
		sb := util.GetStringBuilder()
		defer util.FreeStringBuilder(sb)

		sb.WriteByte('[')
		for i, e := range list {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(renderValue(e))
		}
		sb.WriteByte(']')
		return sb.String()
	}
	return fmt.Sprintf("%v", v)
}

// valuesEqual compares two configuration values. Parsed URLs compare
// semantically, everything else structurally.
func valuesEqual(a, b any) bool {
	if ua, ok := a.(*uri.SIP); ok {
		return ua.Equal(b)
	}
	if ub, ok := b.(*uri.SIP); ok {
		return ub.Equal(a)
	}
	return reflect.DeepEqual(a, b)
}
