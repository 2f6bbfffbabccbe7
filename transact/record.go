package transact

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/sipward/sipward/internal/util"
	"github.com/sipward/sipward/sip"
)

// StatelessBranch is a (branch, method) pair a stateless response was
// forwarded for through an existing transaction.
type StatelessBranch struct {
	Branch string
	Method sip.RequestMethod
}

// Record is one tracked transaction. Records are handed out by value;
// every mutation goes through the owning [Index].
type Record struct {
	ref  Ref
	kind Kind

	clientID sip.ClientTransactionID
	serverID sip.ServerTransactionID
	ackID    sip.AckID2543
	hasAckID bool

	// Worker drives the transaction; nil after detach.
	Worker Worker
	// AppData is an arbitrary worker-owned datum.
	AppData any
	// ResponseToTag is the To tag of the response sent for this
	// transaction, used to disambiguate RFC 2543 ACK matching.
	// Empty means unset.
	ResponseToTag string
	// Expire is the absolute eviction time in unix seconds; 0 = never.
	Expire int64

	// ordered for diagnostic stability, set semantics
	statelessBranches []StatelessBranch
}

// Ref returns the stable identity of the record.
func (r Record) Ref() Ref { return r.ref }

// Kind returns the record kind.
func (r Record) Kind() Kind { return r.kind }

// ClientID returns the client transaction id; only meaningful for
// [KindClient] records.
func (r Record) ClientID() sip.ClientTransactionID { return r.clientID }

// ServerID returns the server transaction id; only meaningful for
// [KindServer] records.
func (r Record) ServerID() sip.ServerTransactionID { return r.serverID }

// AckID returns the RFC 2543 ACK id of a server INVITE record.
func (r Record) AckID() (sip.AckID2543, bool) { return r.ackID, r.hasAckID }

// StatelessBranches returns a copy of the tracked stateless response
// branches in insertion order.
func (r Record) StatelessBranches() []StatelessBranch {
	return slices.Clone(r.statelessBranches)
}

// HasStatelessBranch reports whether the (branch, method) pair is tracked.
func (r Record) HasStatelessBranch(branch string, method sip.RequestMethod) bool {
	for _, sb := range r.statelessBranches {
		if sb.Branch == branch && sb.Method.Equal(method) {
			return true
		}
	}
	return false
}

func (r Record) id() any {
	if r.kind == KindClient {
		return r.clientID
	}
	return r.serverID
}

// sameID reports whether two records collide on (kind, id).
func (r Record) sameID(other Record) bool {
	if r.kind != other.kind {
		return false
	}
	if r.kind == KindClient {
		return r.clientID.Equal(other.clientID)
	}
	return r.serverID.Equal(other.serverID)
}

// LogValue implements [slog.LogValuer].
func (r Record) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Uint64("ref", uint64(r.ref)),
		slog.String("kind", string(r.kind)),
		slog.Any("id", r.id()),
	}
	if r.hasAckID {
		attrs = append(attrs, slog.Any("ack_id", r.ackID))
	}
	if r.ResponseToTag != "" {
		attrs = append(attrs, slog.String("response_to_tag", r.ResponseToTag))
	}
	if r.Expire > 0 {
		attrs = append(attrs, slog.Int64("expire", r.Expire))
	}
	return slog.GroupValue(attrs...)
}

func (r Record) debugString() string {
	worker := "none"
	if r.Worker != nil {
		worker = fmt.Sprintf("%v", r.Worker)
	}
	ackID := "none"
	if r.hasAckID {
		ackID = fmt.Sprintf("%+v", r.ackID)
	}
	appData := "none"
	if r.AppData != nil {
		appData = util.Ellipsis(fmt.Sprintf("%v", r.AppData), 40)
	}
	return fmt.Sprintf("#%d %s id=%v ack_id=%s worker=%s appdata=%s branches=%d expire=%d",
		r.ref, r.kind, r.id(), ackID, worker, appData, len(r.statelessBranches), r.Expire)
}
