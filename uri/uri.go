// Package uri implements parsing and rendering of SIP and SIPS URIs
// as described in RFC 3261 Section 19.1.
package uri

//go:generate errtrace -w .

import (
	"maps"

	"github.com/sipward/sipward/internal/errorutil"
)

type Error = errorutil.Error

const (
	ErrEmptyInput      Error = "empty input"
	ErrMalformedURI    Error = "malformed uri"
	ErrUnknownScheme   Error = "unknown uri scheme"
	ErrMissingHost     Error = "missing host"
	ErrInvalidPort     Error = "invalid port"
	ErrInvalidUserInfo Error = "invalid userinfo"
)

// Values holds URI parameters or headers.
// A key present with an empty value renders as a flag parameter (";lr").
type Values map[string]string

// Get returns the value for the key and whether the key is present.
func (vs Values) Get(k string) (string, bool) {
	v, ok := vs[k]
	return v, ok
}

// Has returns whether the key is present.
func (vs Values) Has(k string) bool {
	_, ok := vs[k]
	return ok
}

// Set stores the value under the key and returns the receiver.
func (vs Values) Set(k, v string) Values {
	vs[k] = v
	return vs
}

// Clone returns a copy of the values.
func (vs Values) Clone() Values {
	if vs == nil {
		return nil
	}
	return maps.Clone(vs)
}
