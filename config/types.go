package config

import (
	"fmt"
	"regexp"

	"github.com/sipward/sipward/internal/util"
	"github.com/sipward/sipward/uri"
)

// typeError carries the structured outcome of a failed type check:
// a short reason, the 1-based index of the offending element and the
// element itself. inList tells the caller which message form to use.
type typeError struct {
	reason string
	index  int
	value  any
	inList bool
}

func (e *typeError) message(key Key, typ Type) string {
	if e.inList {
		return fmt.Sprintf("parameter '%s' has invalid value (#%d in list (%s)) - expected %s : %s",
			key, e.index, renderValue(e.value), typ, e.reason)
	}
	return fmt.Sprintf("parameter '%s' has invalid value (%s) - expected %s : %s",
		key, renderValue(e.value), typ, e.reason)
}

const (
	reasonInvalidType   = "invalid type"
	reasonInvalidString = "invalid string"
	reasonBadRegexp     = "unparsable regexp"
	reasonBadURL        = "unparsable URL"
)

// checkValue validates a snapshot value against its schema entry and
// returns the (possibly normalized) value. The shape is reconciled
// first: a list entry demands a sequence and validates every element,
// a singleton entry validates the value itself.
func checkValue(entry SchemaEntry, value any) (any, *typeError) {
	if !entry.ListOf {
		nv, reason := checkElem(entry, value)
		if reason != "" {
			return nil, &typeError{reason: reason, index: 1, value: value}
		}
		return nv, nil
	}

	list, ok := asList(value)
	if !ok {
		return nil, &typeError{
			reason: fmt.Sprintf("list of %s expected", entry.Type),
			index:  1,
			value:  value,
		}
	}

	out := make([]any, len(list))
	for i, elem := range list {
		nv, reason := checkElem(entry, elem)
		if reason != "" {
			return nil, &typeError{reason: reason, index: i + 1, value: elem, inList: true}
		}
		out[i] = nv
	}
	return out, nil
}

// checkElem validates one element. It returns the normalized element
// and an empty reason on success.
func checkElem(entry SchemaEntry, v any) (any, string) {
	switch entry.Type {
	case TypeOpaque:
		return v, ""

	case TypeSymbol:
		switch v := v.(type) {
		case Symbol:
			return v, ""
		case string:
			// file backends have no atom syntax, a bare string will do
			return Symbol(v), ""
		}
		return nil, reasonInvalidType

	case TypeInteger:
		switch v := v.(type) {
		case int:
			return v, ""
		case int64:
			return int(v), ""
		}
		return nil, reasonInvalidType

	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, ""
		}
		return nil, reasonInvalidType

	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, reasonInvalidType
		}
		if len(s) < 2 {
			return nil, reasonInvalidString
		}
		if entry.Normalize {
			return util.LCase(s), ""
		}
		return s, ""

	case TypeRegexRewrite:
		rw, ok := v.(Rewrite)
		if !ok {
			return nil, reasonInvalidType
		}
		if len(rw.Match) < 2 || len(rw.Rewrite) < 2 {
			return nil, reasonInvalidString
		}
		if _, err := regexp.Compile(rw.Match); err != nil {
			return nil, reasonBadRegexp
		}
		return rw, ""

	case TypeRegexMatch:
		ma, ok := v.(MatchAction)
		if !ok {
			return nil, reasonInvalidType
		}
		if _, err := regexp.Compile(ma.Match); err != nil {
			return nil, reasonBadRegexp
		}
		return ma, ""

	case TypeSIPURL:
		return checkURL(entry, v, uri.Parse[string])

	case TypeSIPDefaultedURL:
		return checkURL(entry, v, func(s string) (*uri.SIP, error) {
			return uri.ParseWithDefaultScheme("sip", s)
		})

	case TypeSIPSDefaultedURL:
		return checkURL(entry, v, func(s string) (*uri.SIP, error) {
			return uri.ParseWithDefaultScheme("sips", s)
		})
	}
	return nil, reasonInvalidType
}

// checkURL parses a URL-typed element. The normalized form is the
// parsed URL handle; without normalization the original string is kept
// and the parse is only a well-formedness check.
func checkURL(entry SchemaEntry, v any, parse func(string) (*uri.SIP, error)) (any, string) {
	switch v := v.(type) {
	case *uri.SIP:
		// already normalized
		return v, ""
	case string:
		u, err := parse(v)
		if err != nil {
			return nil, reasonBadURL
		}
		if entry.Normalize {
			return u, ""
		}
		return v, ""
	}
	return nil, reasonInvalidType
}
