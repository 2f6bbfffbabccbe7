package transact

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"braces.dev/errtrace"

	"github.com/sipward/sipward/internal/util"
	"github.com/sipward/sipward/log"
	"github.com/sipward/sipward/sip"
)

// IndexOptions are the options for an [Index].
type IndexOptions struct {
	// Parser derives transaction ids from messages.
	// If nil, [sip.Parser] is used.
	Parser sip.TransactionIDParser
	// Clock returns the current time in unix seconds; used by the
	// expiry sweep. If nil, the wall clock is used.
	Clock func() int64
	// Metrics receives registry gauges and counters. If nil, metrics
	// are not collected.
	Metrics *Metrics
	// Logger is the logger. If nil, the [log.Default] is used.
	Logger *slog.Logger
}

func (o *IndexOptions) parser() sip.TransactionIDParser {
	if o == nil || o.Parser == nil {
		return sip.Parser{}
	}
	return o.Parser
}

func (o *IndexOptions) clock() func() int64 {
	if o == nil || o.Clock == nil {
		return func() int64 { return time.Now().Unix() }
	}
	return o.Clock
}

func (o *IndexOptions) metrics() *Metrics {
	if o == nil {
		return nil
	}
	return o.Metrics
}

func (o *IndexOptions) log() *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// Index is the registry of transaction records.
//
// It keeps insertion order: every matcher returns the first record
// encountered in that order. No two records share (kind, id).
//
// The index is not safe for concurrent use; it is owned by a single
// dispatcher whose mailbox serializes operations (see [Dispatcher]).
// Mutators never fail the caller: bad input is logged and the index is
// left unchanged, because callers are protocol handlers that must stay
// live. The one exception is [Index.Update] with an unknown ref, which
// clears the index.
type Index struct {
	parser  sip.TransactionIDParser
	now     func() int64
	metrics *Metrics
	log     *slog.Logger

	recs    []Record
	nextRef Ref
}

// NewIndex creates an empty [Index].
// Options are optional, if nil, default values are used (see [IndexOptions]).
func NewIndex(opts *IndexOptions) *Index {
	return &Index{
		parser:  opts.parser(),
		now:     opts.clock(),
		metrics: opts.metrics(),
		log:     opts.log(),
		nextRef: 1,
	}
}

// Len returns the number of records in the index.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.recs)
}

// AddClientTransaction inserts a client transaction record keyed by
// (branch, method). A duplicate id is logged and the index is left
// unchanged, reported by ok = false.
func (ix *Index) AddClientTransaction(
	method sip.RequestMethod,
	branch string,
	worker Worker,
) (rec Record, ok bool) {
	rec = Record{
		kind: KindClient,
		clientID: sip.ClientTransactionID{
			Branch: branch,
			Method: method.ToUpper(),
		},
		Worker: worker,
	}
	return ix.insert(rec)
}

// AddServerTransaction inserts a server transaction record for the
// request. The id comes from the parser; INVITE requests additionally
// get the RFC 2543 ACK id. Parser failures and duplicate ids are
// logged and the index is left unchanged, reported by ok = false.
func (ix *Index) AddServerTransaction(req *sip.Request, worker Worker) (rec Record, ok bool) {
	id, err := ix.parser.ServerTransactionID(req)
	if err != nil {
		ix.log.LogAttrs(context.Background(), slog.LevelError,
			"failed to derive server transaction id, request not tracked",
			slog.Any("request", req),
			slog.Any("error", err),
		)
		return Record{}, false
	}

	rec = Record{
		kind:     KindServer,
		serverID: id,
		Worker:   worker,
	}

	if req.Method.Equal(sip.RequestMethodInvite) {
		ackID, err := ix.parser.ServerTransactionAckID2543(req)
		if err != nil {
			ix.log.LogAttrs(context.Background(), slog.LevelError,
				"failed to derive rfc2543 ack id, request not tracked",
				slog.Any("request", req),
				slog.Any("error", err),
			)
			return Record{}, false
		}
		rec.ackID = ackID
		rec.hasAckID = true
	}
	return ix.insert(rec)
}

func (ix *Index) insert(rec Record) (Record, bool) {
	for _, old := range ix.recs {
		if old.sameID(rec) {
			ix.log.LogAttrs(context.Background(), slog.LevelError,
				"transaction with the same id already tracked, new one ignored",
				slog.Any("existing", old),
				slog.Any("new", rec),
			)
			return Record{}, false
		}
	}

	rec.ref = ix.nextRef
	ix.nextRef++
	ix.recs = append(ix.recs, rec)
	ix.metrics.added(rec.kind)
	ix.metrics.setActive(len(ix.recs))
	return rec, true
}

// GetClientTransaction returns the client record keyed by
// (branch, method), or [ErrTransactionNotFound].
func (ix *Index) GetClientTransaction(method sip.RequestMethod, branch string) (Record, error) {
	id := sip.ClientTransactionID{Branch: branch, Method: method}
	for _, rec := range ix.recs {
		if rec.kind == KindClient && rec.clientID.Equal(id) {
			return rec, nil
		}
	}
	return Record{}, errtrace.Wrap(ErrTransactionNotFound)
}

// GetServerTransactionByRequest matches an inbound request to a server
// record per RFC 3261 Section 17.2.3, falling back to the RFC 2543 ACK
// algorithm for 2543 ACKs and for ACKs whose branch was regenerated by
// an intermediate RFC 3261 proxy. Parser failures are logged and
// returned; a plain miss is [ErrTransactionNotFound].
func (ix *Index) GetServerTransactionByRequest(req *sip.Request) (Record, error) {
	id, err := ix.parser.ServerTransactionID(req)
	switch {
	case errors.Is(err, sip.ErrIs2543Ack):
		return errtrace.Wrap2(ix.match2543Ack(req))
	case err != nil:
		ix.log.LogAttrs(context.Background(), slog.LevelError,
			"failed to derive server transaction id from request",
			slog.Any("request", req),
			slog.Any("error", err),
		)
		return Record{}, errtrace.Wrap(err)
	}

	for _, rec := range ix.recs {
		if rec.kind == KindServer && rec.serverID.Equal(id) {
			return rec, nil
		}
	}

	// an ACK that missed may belong to an INVITE whose branch was
	// rewritten along the way; the 2543 algorithm still finds it
	if req.Method.Equal(sip.RequestMethodAck) {
		return errtrace.Wrap2(ix.match2543Ack(req))
	}
	return Record{}, errtrace.Wrap(ErrTransactionNotFound)
}

func (ix *Index) match2543Ack(req *sip.Request) (Record, error) {
	ackID, err := ix.parser.ServerTransactionAckID2543(req)
	if err != nil {
		ix.log.LogAttrs(context.Background(), slog.LevelError,
			"failed to derive rfc2543 ack id from request",
			slog.Any("request", req),
			slog.Any("error", err),
		)
		return Record{}, errtrace.Wrap(err)
	}
	toTag, _ := ix.parser.Tag(req.To)

	for _, rec := range ix.recs {
		if rec.kind != KindServer || !rec.hasAckID || !rec.ackID.Equal(ackID) {
			continue
		}
		if rec.ResponseToTag != toTag {
			ix.log.LogAttrs(context.Background(), slog.LevelDebug,
				"ack id matched but to-tag differs, record skipped",
				slog.Any("record", rec),
				slog.String("to_tag", toTag),
			)
			continue
		}
		return rec, nil
	}
	return Record{}, errtrace.Wrap(ErrTransactionNotFound)
}

// GetServerTransactionByResponse matches an outbound response to the
// server record it belongs to. A stateless server recognizes its own
// responses this way: the id is derived the same way a client
// transaction id would be.
func (ix *Index) GetServerTransactionByResponse(res *sip.Response) (Record, error) {
	id, err := ix.parser.ClientTransactionID(res)
	if err != nil {
		ix.log.LogAttrs(context.Background(), slog.LevelError,
			"failed to derive transaction id from response",
			slog.Any("response", res),
			slog.Any("error", err),
		)
		return Record{}, errtrace.Wrap(err)
	}

	for _, rec := range ix.recs {
		if rec.kind != KindServer || !sip.IsRFC3261Branch(rec.serverID.Branch) {
			continue
		}
		if rec.serverID.Branch == id.Branch && rec.serverID.Method.Equal(id.Method) {
			return rec, nil
		}
	}
	return Record{}, errtrace.Wrap(ErrTransactionNotFound)
}

// GetServerTransactionByStatelessBranch returns the first record that
// forwarded a stateless response for the (branch, method) pair.
func (ix *Index) GetServerTransactionByStatelessBranch(
	branch string,
	method sip.RequestMethod,
) (Record, error) {
	for _, rec := range ix.recs {
		if rec.HasStatelessBranch(branch, method) {
			return rec, nil
		}
	}
	return Record{}, errtrace.Wrap(ErrTransactionNotFound)
}

// GetByWorker returns all records driven by the worker, in insertion order.
func (ix *Index) GetByWorker(worker Worker) []Record {
	var recs []Record
	for _, rec := range ix.recs {
		if rec.Worker == worker {
			recs = append(recs, rec)
		}
	}
	return recs
}

// GetOneByWorker returns the single record driven by the worker.
// It returns [ErrAmbiguousWorker] when the worker drives more than one.
func (ix *Index) GetOneByWorker(worker Worker) (Record, error) {
	recs := ix.GetByWorker(worker)
	switch len(recs) {
	case 0:
		return Record{}, errtrace.Wrap(ErrTransactionNotFound)
	case 1:
		return recs[0], nil
	default:
		return Record{}, errtrace.Wrap(ErrAmbiguousWorker)
	}
}

// SetWorker replaces the worker of the record; nil detaches it.
func (ix *Index) SetWorker(ref Ref, worker Worker) bool {
	return ix.mutate(ref, "set worker", func(rec *Record) {
		rec.Worker = worker
	})
}

// SetAppData replaces the worker-owned datum of the record.
func (ix *Index) SetAppData(ref Ref, data any) bool {
	return ix.mutate(ref, "set appdata", func(rec *Record) {
		rec.AppData = data
	})
}

// SetResponseToTag stores the To tag sent in the response for this
// transaction, enabling RFC 2543 ACK disambiguation.
func (ix *Index) SetResponseToTag(ref Ref, tag string) bool {
	return ix.mutate(ref, "set response to-tag", func(rec *Record) {
		rec.ResponseToTag = tag
	})
}

// SetExpire schedules the record for eviction at the given unix second;
// 0 cancels eviction.
func (ix *Index) SetExpire(ref Ref, at int64) bool {
	return ix.mutate(ref, "set expire", func(rec *Record) {
		rec.Expire = at
	})
}

// AppendStatelessBranch adds a (branch, method) pair to the stateless
// response set of the record. Appending a pair already present is a
// no-op: membership is set semantics.
func (ix *Index) AppendStatelessBranch(ref Ref, branch string, method sip.RequestMethod) bool {
	return ix.mutate(ref, "append stateless branch", func(rec *Record) {
		if rec.HasStatelessBranch(branch, method) {
			return
		}
		rec.statelessBranches = append(rec.statelessBranches, StatelessBranch{
			Branch: branch,
			Method: method.ToUpper(),
		})
	})
}

func (ix *Index) mutate(ref Ref, op string, fn func(rec *Record)) bool {
	for i := range ix.recs {
		if ix.recs[i].ref == ref {
			fn(&ix.recs[i])
			return true
		}
	}
	ix.log.LogAttrs(context.Background(), slog.LevelError,
		"no record with this ref, mutation dropped",
		slog.String("op", op),
		slog.Uint64("ref", uint64(ref)),
	)
	return false
}

// Update replaces the stored record having the same ref.
//
// An unknown ref means the caller holds a stale handle and has a logic
// bug; the index is cleared in response. That matches the behavior the
// registry always had, questionable as it is, so that bugs of this
// class keep failing loudly instead of half-working.
func (ix *Index) Update(rec Record) bool {
	for i := range ix.recs {
		if ix.recs[i].ref == rec.ref {
			ix.recs[i] = rec
			return true
		}
	}

	ix.log.LogAttrs(context.Background(), slog.LevelError,
		"update with unknown ref, clearing registry",
		slog.Any("record", rec),
	)
	ix.recs = nil
	ix.metrics.setActive(0)
	return false
}

// DeleteByWorker drops every record driven by the worker and returns
// how many were dropped.
func (ix *Index) DeleteByWorker(worker Worker) int {
	before := len(ix.recs)
	ix.recs = slices.DeleteFunc(ix.recs, func(rec Record) bool {
		return rec.Worker == worker
	})
	dropped := before - len(ix.recs)
	if dropped > 0 {
		ix.metrics.deleted(dropped)
		ix.metrics.setActive(len(ix.recs))
	}
	return dropped
}

// DeleteExpired drops every record whose expiry time has passed and
// returns how many were dropped. Live workers of dropped records get a
// best-effort [SignalExpired]; delivery failures never fail the sweep.
func (ix *Index) DeleteExpired() int {
	now := ix.now()
	before := len(ix.recs)
	ix.recs = slices.DeleteFunc(ix.recs, func(rec Record) bool {
		if rec.Expire <= 0 || rec.Expire > now {
			return false
		}

		ix.log.LogAttrs(context.Background(), slog.LevelDebug,
			"transaction expired",
			slog.Any("record", rec),
		)
		if rec.Worker != nil && rec.Worker.Alive() {
			if err := rec.Worker.Deliver(SignalExpired); err != nil {
				ix.log.LogAttrs(context.Background(), slog.LevelDebug,
					"failed to deliver expired signal",
					slog.Any("record", rec),
					slog.Any("error", err),
				)
			}
		}
		return true
	})

	dropped := before - len(ix.recs)
	if dropped > 0 {
		ix.metrics.expired(dropped)
		ix.metrics.setActive(len(ix.recs))
	}
	return dropped
}

// DebugString renders an immutable snapshot of the index for logging.
func (ix *Index) DebugString() string {
	if ix == nil || len(ix.recs) == 0 {
		return "(no transactions)"
	}

	sb := util.GetStringBuilder()
	defer util.FreeStringBuilder(sb)

	for i, rec := range ix.recs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(rec.debugString())
	}
	return sb.String()
}
