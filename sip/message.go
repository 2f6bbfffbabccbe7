package sip

import (
	"log/slog"
	"strconv"

	"github.com/sipward/sipward/internal/util"
	"github.com/sipward/sipward/uri"
)

// ViaHop is one hop of the Via header chain.
type ViaHop struct {
	// Transport is the transport token, e.g. "UDP" or "TLS".
	Transport string
	// Host and Port form the sent-by address.
	Host string
	Port int
	// Params are the Via parameters (branch, received, rport, ...).
	Params uri.Values
}

// Branch returns the branch parameter.
func (v ViaHop) Branch() (string, bool) {
	return v.Params.Get("branch")
}

// SentBy returns the case-folded sent-by address of the hop.
func (v ViaHop) SentBy() string {
	host := util.LCase(v.Host)
	if v.Port > 0 {
		return host + ":" + strconv.Itoa(v.Port)
	}
	return host
}

// String renders the transport and sent-by of the hop; no parameters
// are rendered, the branch included. The branch changes on every RFC 3261 hop, so identifiers built from a
// rendered Via must not depend on it.
func (v ViaHop) String() string {
	sb := util.GetStringBuilder()
	defer util.FreeStringBuilder(sb)

	sb.WriteString("SIP/2.0/")
	sb.WriteString(util.UCase(v.Transport))
	sb.WriteByte(' ')
	sb.WriteString(v.SentBy())
	return sb.String()
}

// NameAddr is the From/To header data the transaction core needs.
type NameAddr struct {
	DisplayName string
	URI         *uri.SIP
	Params      uri.Values
}

// Tag returns the tag parameter of the name-addr.
func (na NameAddr) Tag() (string, bool) {
	return na.Params.Get("tag")
}

// CSeq is the CSeq header value.
type CSeq struct {
	Num    uint32
	Method RequestMethod
}

// Request is an inbound SIP request reduced to the fields the
// transaction core consumes. Parsing the wire form into this shape is
// the transport layer's job.
type Request struct {
	Method RequestMethod
	URI    *uri.SIP
	// Via holds the Via chain, topmost hop first.
	Via    []ViaHop
	From   NameAddr
	To     NameAddr
	CallID string
	CSeq   CSeq
}

// TopVia returns the topmost Via hop.
func (r *Request) TopVia() (ViaHop, bool) {
	if r == nil || len(r.Via) == 0 {
		return ViaHop{}, false
	}
	return r.Via[0], true
}

// LogValue implements [slog.LogValuer].
func (r *Request) LogValue() slog.Value {
	if r == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.String("method", string(r.Method)),
		slog.String("uri", r.URI.String()),
		slog.String("call_id", r.CallID),
	)
}

// Response is an inbound SIP response reduced to the fields the
// transaction core consumes.
type Response struct {
	Status int
	Reason string
	// Via holds the Via chain, topmost hop first.
	Via    []ViaHop
	From   NameAddr
	To     NameAddr
	CallID string
	CSeq   CSeq
}

// TopVia returns the topmost Via hop.
func (r *Response) TopVia() (ViaHop, bool) {
	if r == nil || len(r.Via) == 0 {
		return ViaHop{}, false
	}
	return r.Via[0], true
}

// LogValue implements [slog.LogValuer].
func (r *Response) LogValue() slog.Value {
	if r == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.Int("status", r.Status),
		slog.String("call_id", r.CallID),
	)
}
