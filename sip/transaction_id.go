package sip

import (
	"encoding/hex"
	"log/slog"

	"github.com/sipward/sipward/internal/util"
)

// ClientTransactionID identifies a client transaction.
//
// RFC 3261 Section 17.1.3: a response matches the client transaction
// whose request carried the same topmost Via branch and whose method
// equals the CSeq method of the response.
type ClientTransactionID struct {
	Branch string
	Method RequestMethod
}

var zeroClientTxID ClientTransactionID

// IsValid checks whether the id is usable for matching.
func (id ClientTransactionID) IsValid() bool {
	return id.Branch != "" && id.Method != ""
}

// Equal checks whether the id matches another id.
// The branch compares case-sensitively, the method case-insensitively.
func (id ClientTransactionID) Equal(val any) bool {
	var other ClientTransactionID
	switch v := val.(type) {
	case ClientTransactionID:
		other = v
	case *ClientTransactionID:
		if v == nil {
			return false
		}
		other = *v
	default:
		return false
	}
	return id.Branch == other.Branch && id.Method.Equal(other.Method)
}

// LogValue implements [slog.LogValuer].
func (id ClientTransactionID) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("branch", id.Branch),
		slog.String("method", string(id.Method)),
	)
}

// ServerTransactionID identifies a server transaction.
//
// Branch, SentBy and Method carry the RFC 3261 Section 17.2.3 key.
// The remaining fields carry the RFC 2543 fallback key for requests
// whose branch lacks the magic cookie. The transaction registry treats
// the id as an opaque value.
type ServerTransactionID struct {
	// RFC 3261 key.
	Branch string
	SentBy string
	Method RequestMethod

	// RFC 2543 key.
	URI     string
	FromTag string
	ToTag   string
	CallID  string
	CSeqNum uint32
	Via     string
}

var zeroServerTxID ServerTransactionID

// IsValid checks whether the id is usable for matching.
func (id ServerTransactionID) IsValid() bool {
	if IsRFC3261Branch(id.Branch) {
		return id.SentBy != "" && id.Method != ""
	}
	return id.Method != "" &&
		id.URI != "" &&
		id.FromTag != "" &&
		id.CallID != ""
}

// Equal checks whether the id matches another id.
func (id ServerTransactionID) Equal(val any) bool {
	var other ServerTransactionID
	switch v := val.(type) {
	case ServerTransactionID:
		other = v
	case *ServerTransactionID:
		if v == nil {
			return false
		}
		other = *v
	default:
		return false
	}

	if IsRFC3261Branch(id.Branch) {
		return id.Branch == other.Branch &&
			util.EqFold(id.SentBy, other.SentBy) &&
			id.Method.Equal(other.Method)
	}

	return id.Method.Equal(other.Method) &&
		util.EqFold(id.URI, other.URI) &&
		id.FromTag == other.FromTag &&
		id.ToTag == other.ToTag &&
		id.CallID == other.CallID &&
		id.CSeqNum == other.CSeqNum &&
		util.EqFold(id.Via, other.Via)
}

const (
	srvTxID3261 byte = 1
	srvTxID2543 byte = 2
)

// MarshalBinary returns a canonical binary representation of the id,
// with case-folded values for case-insensitive fields, usable as a
// stable hash.
func (id ServerTransactionID) MarshalBinary() ([]byte, error) {
	if IsRFC3261Branch(id.Branch) {
		return id.marshal3261(), nil
	}
	return id.marshal2543(), nil
}

func (id ServerTransactionID) marshal3261() []byte {
	sentBy := util.LCase(id.SentBy)
	method := string(id.Method.ToUpper())

	size := 1 +
		util.SizePrefixedString(id.Branch) +
		util.SizePrefixedString(sentBy) +
		util.SizePrefixedString(method)

	buf := make([]byte, 0, size)
	buf = append(buf, srvTxID3261)
	buf = util.AppendPrefixedString(buf, id.Branch)
	buf = util.AppendPrefixedString(buf, sentBy)
	buf = util.AppendPrefixedString(buf, method)
	return buf
}

func (id ServerTransactionID) marshal2543() []byte {
	method := string(id.Method.ToUpper())
	u := util.LCase(id.URI)
	via := util.LCase(id.Via)

	size := 1 +
		util.SizePrefixedString(u) +
		util.SizePrefixedString(id.FromTag) +
		util.SizePrefixedString(id.ToTag) +
		util.SizePrefixedString(id.CallID) +
		util.SizeUVarInt(uint64(id.CSeqNum)) +
		util.SizePrefixedString(method) +
		util.SizePrefixedString(via)

	buf := make([]byte, 0, size)
	buf = append(buf, srvTxID2543)
	buf = util.AppendPrefixedString(buf, u)
	buf = util.AppendPrefixedString(buf, id.FromTag)
	buf = util.AppendPrefixedString(buf, id.ToTag)
	buf = util.AppendPrefixedString(buf, id.CallID)
	buf = util.AppendUVarInt(buf, uint64(id.CSeqNum))
	buf = util.AppendPrefixedString(buf, method)
	buf = util.AppendPrefixedString(buf, via)
	return buf
}

func (id ServerTransactionID) String() string {
	data, _ := id.MarshalBinary()
	return hex.EncodeToString(data)
}

// LogValue implements [slog.LogValuer].
func (id ServerTransactionID) LogValue() slog.Value {
	if IsRFC3261Branch(id.Branch) {
		return slog.GroupValue(
			slog.String("branch", id.Branch),
			slog.String("sent_by", id.SentBy),
			slog.String("method", string(id.Method)),
		)
	}
	return slog.GroupValue(
		slog.String("method", string(id.Method)),
		slog.String("uri", id.URI),
		slog.String("from_tag", id.FromTag),
		slog.String("to_tag", id.ToTag),
		slog.String("call_id", id.CallID),
		slog.Uint64("cseq_num", uint64(id.CSeqNum)),
		slog.String("via", id.Via),
	)
}

// AckID2543 identifies the INVITE server transaction an RFC 2543 ACK
// belongs to. The To tag is deliberately left out: the ACK carries the
// tag of the final response, not of the original INVITE, so the tag is
// compared separately against the response tag stored on the record.
type AckID2543 struct {
	URI     string
	FromTag string
	CallID  string
	CSeqNum uint32
}

var zeroAckID2543 AckID2543

// IsValid checks whether the id is usable for matching.
func (id AckID2543) IsValid() bool {
	return id.URI != "" && id.FromTag != "" && id.CallID != ""
}

// Equal checks whether the id matches another id.
func (id AckID2543) Equal(val any) bool {
	var other AckID2543
	switch v := val.(type) {
	case AckID2543:
		other = v
	case *AckID2543:
		if v == nil {
			return false
		}
		other = *v
	default:
		return false
	}
	return util.EqFold(id.URI, other.URI) &&
		id.FromTag == other.FromTag &&
		id.CallID == other.CallID &&
		id.CSeqNum == other.CSeqNum
}

// LogValue implements [slog.LogValuer].
func (id AckID2543) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("uri", id.URI),
		slog.String("from_tag", id.FromTag),
		slog.String("call_id", id.CallID),
		slog.Uint64("cseq_num", uint64(id.CSeqNum)),
	)
}
