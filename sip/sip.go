// Package sip holds the SIP message surface the proxy core works with:
// the request/response model, transaction identifiers and the parser
// that derives them per RFC 3261 Section 17 and the RFC 2543 fallbacks.
package sip

//go:generate errtrace -w .

import (
	"strings"

	"github.com/sipward/sipward/internal/errorutil"
	"github.com/sipward/sipward/internal/util"
)

// MagicCookie is the RFC 3261 branch prefix.
// A Via branch starting with it marks an RFC 3261 transaction.
const MagicCookie = "z9hG4bK"

// IsRFC3261Branch reports whether the branch was generated per RFC 3261.
func IsRFC3261Branch[T ~string](branch T) bool {
	return strings.HasPrefix(string(branch), MagicCookie)
}

const (
	RequestMethodAck       RequestMethod = "ACK"
	RequestMethodBye       RequestMethod = "BYE"
	RequestMethodCancel    RequestMethod = "CANCEL"
	RequestMethodInfo      RequestMethod = "INFO"
	RequestMethodInvite    RequestMethod = "INVITE"
	RequestMethodMessage   RequestMethod = "MESSAGE"
	RequestMethodNotify    RequestMethod = "NOTIFY"
	RequestMethodOptions   RequestMethod = "OPTIONS"
	RequestMethodPrack     RequestMethod = "PRACK"
	RequestMethodPublish   RequestMethod = "PUBLISH"
	RequestMethodRefer     RequestMethod = "REFER"
	RequestMethodRegister  RequestMethod = "REGISTER"
	RequestMethodSubscribe RequestMethod = "SUBSCRIBE"
	RequestMethodUpdate    RequestMethod = "UPDATE"
)

type RequestMethod string

func (m RequestMethod) ToUpper() RequestMethod { return util.UCase(m) }

func (m RequestMethod) ToLower() RequestMethod { return util.LCase(m) }

func (m RequestMethod) Equal(val any) bool {
	var other RequestMethod
	switch v := val.(type) {
	case RequestMethod:
		other = v
	case *RequestMethod:
		if v == nil {
			return false
		}
		other = *v
	case string:
		other = RequestMethod(v)
	default:
		return false
	}
	return util.EqFold(m, other)
}

// Error represents a SIP error.
type Error = errorutil.Error

const (
	ErrInvalidMessage Error = "invalid message"
	ErrMissingVia     Error = "missing Via header"
	ErrMissingBranch  Error = "missing Via branch"
	ErrMissingCSeq    Error = "missing CSeq header"
	ErrMissingFromTag Error = "missing From tag"

	// ErrIs2543Ack reports that the request is an ACK generated by an
	// RFC 2543 implementation; the caller must fall back to the 2543
	// ACK matching algorithm instead of a direct id lookup.
	ErrIs2543Ack Error = "rfc2543 ack"
)

// NewInvalidMessageError creates a new error with [ErrInvalidMessage] or
// wraps provided error with [ErrInvalidMessage].
func NewInvalidMessageError(args ...any) error {
	return errorutil.NewWrapperError(ErrInvalidMessage, args...) //errtrace:skip
}
