package transact_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	"github.com/sipward/sipward/sip"
	"github.com/sipward/sipward/sip/mocksip"
	"github.com/sipward/sipward/transact"
	"github.com/sipward/sipward/uri"
)

type testWorker struct {
	name       string
	dead       bool
	deliverErr error
	sigs       []transact.Signal
}

func (w *testWorker) Alive() bool { return !w.dead }

func (w *testWorker) Deliver(sig transact.Signal) error {
	if w.deliverErr != nil {
		return w.deliverErr
	}
	w.sigs = append(w.sigs, sig)
	return nil
}

func (w *testWorker) String() string { return w.name }

func newInvite(t *testing.T, branch string) *sip.Request {
	t.Helper()

	return &sip.Request{
		Method: sip.RequestMethodInvite,
		URI:    mustParseURI(t, "sip:bob@biloxi.example.com"),
		Via: []sip.ViaHop{{
			Transport: "UDP",
			Host:      "client.atlanta.example.com",
			Port:      5060,
			Params:    make(uri.Values).Set("branch", branch),
		}},
		From: sip.NameAddr{
			URI:    mustParseURI(t, "sip:alice@atlanta.example.com"),
			Params: make(uri.Values).Set("tag", "9fxced76sl"),
		},
		To: sip.NameAddr{
			URI:    mustParseURI(t, "sip:bob@biloxi.example.com"),
			Params: make(uri.Values),
		},
		CallID: "3848276298220188511@atlanta.example.com",
		CSeq:   sip.CSeq{Num: 1, Method: sip.RequestMethodInvite},
	}
}

func newAckFor(t *testing.T, invite *sip.Request, branch, toTag string) *sip.Request {
	t.Helper()

	ack := newInvite(t, branch)
	ack.Method = sip.RequestMethodAck
	ack.CSeq = sip.CSeq{Num: invite.CSeq.Num, Method: sip.RequestMethodAck}
	if toTag != "" {
		ack.To.Params = make(uri.Values).Set("tag", toTag)
	}
	return ack
}

func mustParseURI(t *testing.T, s string) *uri.SIP {
	t.Helper()

	u, err := uri.Parse(s)
	if err != nil {
		t.Fatalf("uri.Parse(%q) error = %v, want nil", s, err)
	}
	return u
}

func TestIndex_AddClientTransaction_GetClientTransaction(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	w := &testWorker{name: "w1"}

	rec, ok := ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".abc", w)
	if !ok {
		t.Fatalf("AddClientTransaction() ok = false, want true")
	}
	if rec.Ref() == 0 {
		t.Fatalf("rec.Ref() = 0, want non-zero")
	}
	if rec.Kind() != transact.KindClient {
		t.Fatalf("rec.Kind() = %q, want %q", rec.Kind(), transact.KindClient)
	}

	got, err := ix.GetClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".abc")
	if err != nil {
		t.Fatalf("GetClientTransaction() error = %v, want nil", err)
	}
	if got.Ref() != rec.Ref() {
		t.Fatalf("GetClientTransaction() ref = %d, want %d", got.Ref(), rec.Ref())
	}

	// same branch, different method
	if _, err := ix.GetClientTransaction(sip.RequestMethodAck, sip.MagicCookie+".abc"); !errors.Is(err, transact.ErrTransactionNotFound) {
		t.Fatalf("GetClientTransaction(ACK) error = %v, want %v", err, transact.ErrTransactionNotFound)
	}
}

func TestIndex_AddClientTransaction_Duplicate(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	w := &testWorker{name: "w1"}

	if _, ok := ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".abc", w); !ok {
		t.Fatalf("first AddClientTransaction() ok = false, want true")
	}
	if _, ok := ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".abc", w); ok {
		t.Fatalf("duplicate AddClientTransaction() ok = true, want false")
	}
	if ix.Len() != 1 {
		t.Fatalf("ix.Len() = %d, want 1", ix.Len())
	}
}

func TestIndex_AddServerTransaction_MatchByRequest(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	w := &testWorker{name: "w1"}
	invite := newInvite(t, sip.MagicCookie+".74bf9")

	rec, ok := ix.AddServerTransaction(invite, w)
	if !ok {
		t.Fatalf("AddServerTransaction() ok = false, want true")
	}
	if _, hasAck := rec.AckID(); !hasAck {
		t.Fatalf("rec.AckID() absent, want present for INVITE")
	}

	// retransmit matches
	got, err := ix.GetServerTransactionByRequest(invite)
	if err != nil {
		t.Fatalf("GetServerTransactionByRequest() error = %v, want nil", err)
	}
	if got.Ref() != rec.Ref() {
		t.Fatalf("matched ref = %d, want %d", got.Ref(), rec.Ref())
	}

	// duplicate insert refused
	if _, ok := ix.AddServerTransaction(invite, w); ok {
		t.Fatalf("duplicate AddServerTransaction() ok = true, want false")
	}
	if ix.Len() != 1 {
		t.Fatalf("ix.Len() = %d, want 1", ix.Len())
	}
}

func TestIndex_AddServerTransaction_NonInviteHasNoAckID(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	req := newInvite(t, sip.MagicCookie+".74bf9")
	req.Method = sip.RequestMethodOptions
	req.CSeq.Method = sip.RequestMethodOptions

	rec, ok := ix.AddServerTransaction(req, &testWorker{name: "w1"})
	if !ok {
		t.Fatalf("AddServerTransaction() ok = false, want true")
	}
	if _, hasAck := rec.AckID(); hasAck {
		t.Fatalf("rec.AckID() present, want absent for non-INVITE")
	}
}

func TestIndex_Match2543Ack(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	w := &testWorker{name: "w1"}

	// INVITE from an RFC 2543 implementation: branch without magic cookie
	invite := newInvite(t, "7c337f30d7ce.1")
	rec, ok := ix.AddServerTransaction(invite, w)
	if !ok {
		t.Fatalf("AddServerTransaction() ok = false, want true")
	}
	if !ix.SetResponseToTag(rec.Ref(), "314159") {
		t.Fatalf("SetResponseToTag() = false, want true")
	}

	// ACK with a fresh branch and the tag of the final response
	ack := newAckFor(t, invite, "7c337f30d7ce.2", "314159")
	got, err := ix.GetServerTransactionByRequest(ack)
	if err != nil {
		t.Fatalf("GetServerTransactionByRequest(ack) error = %v, want nil", err)
	}
	if got.Ref() != rec.Ref() {
		t.Fatalf("matched ref = %d, want %d", got.Ref(), rec.Ref())
	}

	// same ack id but a different to-tag is skipped
	strayAck := newAckFor(t, invite, "7c337f30d7ce.3", "271828")
	if _, err := ix.GetServerTransactionByRequest(strayAck); !errors.Is(err, transact.ErrTransactionNotFound) {
		t.Fatalf("GetServerTransactionByRequest(stray ack) error = %v, want %v", err, transact.ErrTransactionNotFound)
	}
}

func TestIndex_Match2543Ack_BranchRegeneratedByProxy(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	w := &testWorker{name: "w1"}

	// RFC 3261 INVITE
	invite := newInvite(t, sip.MagicCookie+".74bf9")
	rec, ok := ix.AddServerTransaction(invite, w)
	if !ok {
		t.Fatalf("AddServerTransaction() ok = false, want true")
	}
	ix.SetResponseToTag(rec.Ref(), "314159")

	// the ACK went through a proxy that generated its own branch,
	// so the direct id lookup misses and the 2543 fallback hits
	ack := newAckFor(t, invite, sip.MagicCookie+".fresh", "314159")
	got, err := ix.GetServerTransactionByRequest(ack)
	if err != nil {
		t.Fatalf("GetServerTransactionByRequest(ack) error = %v, want nil", err)
	}
	if got.Ref() != rec.Ref() {
		t.Fatalf("matched ref = %d, want %d", got.Ref(), rec.Ref())
	}
}

func TestIndex_GetServerTransactionByResponse(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	invite := newInvite(t, sip.MagicCookie+".74bf9")
	rec, ok := ix.AddServerTransaction(invite, &testWorker{name: "w1"})
	if !ok {
		t.Fatalf("AddServerTransaction() ok = false, want true")
	}

	res := &sip.Response{
		Status: 200,
		Via:    invite.Via,
		CSeq:   invite.CSeq,
		CallID: invite.CallID,
	}
	got, err := ix.GetServerTransactionByResponse(res)
	if err != nil {
		t.Fatalf("GetServerTransactionByResponse() error = %v, want nil", err)
	}
	if got.Ref() != rec.Ref() {
		t.Fatalf("matched ref = %d, want %d", got.Ref(), rec.Ref())
	}
}

func TestIndex_StatelessBranches(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	rec, ok := ix.AddServerTransaction(newInvite(t, sip.MagicCookie+".74bf9"), &testWorker{name: "w1"})
	if !ok {
		t.Fatalf("AddServerTransaction() ok = false, want true")
	}

	if !ix.AppendStatelessBranch(rec.Ref(), sip.MagicCookie+".fwd1", sip.RequestMethodInvite) {
		t.Fatalf("AppendStatelessBranch() = false, want true")
	}
	// appending the same pair again must not grow the set
	ix.AppendStatelessBranch(rec.Ref(), sip.MagicCookie+".fwd1", sip.RequestMethodInvite)
	ix.AppendStatelessBranch(rec.Ref(), sip.MagicCookie+".fwd2", sip.RequestMethodInvite)

	got, err := ix.GetServerTransactionByStatelessBranch(sip.MagicCookie+".fwd1", sip.RequestMethodInvite)
	if err != nil {
		t.Fatalf("GetServerTransactionByStatelessBranch() error = %v, want nil", err)
	}

	want := []transact.StatelessBranch{
		{Branch: sip.MagicCookie + ".fwd1", Method: sip.RequestMethodInvite},
		{Branch: sip.MagicCookie + ".fwd2", Method: sip.RequestMethodInvite},
	}
	if diff := cmp.Diff(want, got.StatelessBranches()); diff != "" {
		t.Fatalf("StatelessBranches() mismatch (-want +got):\n%s", diff)
	}

	if _, err := ix.GetServerTransactionByStatelessBranch(sip.MagicCookie+".fwd3", sip.RequestMethodInvite); !errors.Is(err, transact.ErrTransactionNotFound) {
		t.Fatalf("GetServerTransactionByStatelessBranch(miss) error = %v, want %v", err, transact.ErrTransactionNotFound)
	}
}

func TestIndex_GetByWorker(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	w1 := &testWorker{name: "w1"}
	w2 := &testWorker{name: "w2"}

	ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".a", w1)
	ix.AddClientTransaction(sip.RequestMethodBye, sip.MagicCookie+".b", w1)
	ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".c", w2)

	if got := len(ix.GetByWorker(w1)); got != 2 {
		t.Fatalf("len(GetByWorker(w1)) = %d, want 2", got)
	}

	if _, err := ix.GetOneByWorker(w1); !errors.Is(err, transact.ErrAmbiguousWorker) {
		t.Fatalf("GetOneByWorker(w1) error = %v, want %v", err, transact.ErrAmbiguousWorker)
	}
	rec, err := ix.GetOneByWorker(w2)
	if err != nil {
		t.Fatalf("GetOneByWorker(w2) error = %v, want nil", err)
	}
	if rec.Worker != transact.Worker(w2) {
		t.Fatalf("rec.Worker = %v, want %v", rec.Worker, w2)
	}
	if _, err := ix.GetOneByWorker(&testWorker{name: "w3"}); !errors.Is(err, transact.ErrTransactionNotFound) {
		t.Fatalf("GetOneByWorker(w3) error = %v, want %v", err, transact.ErrTransactionNotFound)
	}
}

func TestIndex_SettersAndUpdate(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	w1 := &testWorker{name: "w1"}
	w2 := &testWorker{name: "w2"}

	rec, ok := ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".a", w1)
	if !ok {
		t.Fatalf("AddClientTransaction() ok = false, want true")
	}

	if !ix.SetWorker(rec.Ref(), w2) {
		t.Fatalf("SetWorker() = false, want true")
	}
	if !ix.SetAppData(rec.Ref(), "dialog-17") {
		t.Fatalf("SetAppData() = false, want true")
	}

	got, err := ix.GetClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".a")
	if err != nil {
		t.Fatalf("GetClientTransaction() error = %v, want nil", err)
	}
	if got.Worker != transact.Worker(w2) {
		t.Fatalf("got.Worker = %v, want %v", got.Worker, w2)
	}
	if got.AppData != "dialog-17" {
		t.Fatalf("got.AppData = %v, want %q", got.AppData, "dialog-17")
	}

	// round-trip a full record through Update
	got.AppData = "dialog-18"
	if !ix.Update(got) {
		t.Fatalf("Update() = false, want true")
	}
	got, err = ix.GetClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".a")
	if err != nil {
		t.Fatalf("GetClientTransaction() error = %v, want nil", err)
	}
	if got.AppData != "dialog-18" {
		t.Fatalf("got.AppData = %v, want %q", got.AppData, "dialog-18")
	}

	// setter with unknown ref is swallowed
	if ix.SetAppData(transact.Ref(999), "x") {
		t.Fatalf("SetAppData(unknown ref) = true, want false")
	}
}

func TestIndex_Update_UnknownRefClearsIndex(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".a", &testWorker{name: "w1"})

	var stale transact.Record
	if ix.Update(stale) {
		t.Fatalf("Update(stale) = true, want false")
	}
	if ix.Len() != 0 {
		t.Fatalf("ix.Len() = %d after stale update, want 0", ix.Len())
	}
}

func TestIndex_DeleteByWorker(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	w1 := &testWorker{name: "w1"}
	w2 := &testWorker{name: "w2"}

	ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".a", w1)
	ix.AddClientTransaction(sip.RequestMethodBye, sip.MagicCookie+".b", w1)
	ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".c", w2)

	if n := ix.DeleteByWorker(w1); n != 2 {
		t.Fatalf("DeleteByWorker(w1) = %d, want 2", n)
	}
	if ix.Len() != 1 {
		t.Fatalf("ix.Len() = %d, want 1", ix.Len())
	}
	if _, err := ix.GetClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".a"); !errors.Is(err, transact.ErrTransactionNotFound) {
		t.Fatalf("deleted record still matched")
	}
}

func TestIndex_DeleteExpired(t *testing.T) {
	t.Parallel()

	var now atomic.Int64
	now.Store(1000)
	ix := transact.NewIndex(&transact.IndexOptions{
		Clock: func() int64 { return now.Load() },
	})

	alive := &testWorker{name: "alive"}
	dead := &testWorker{name: "dead", dead: true}
	failing := &testWorker{name: "failing", deliverErr: errors.New("mailbox full")}

	r1, _ := ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".a", alive)
	r2, _ := ix.AddClientTransaction(sip.RequestMethodBye, sip.MagicCookie+".b", dead)
	r3, _ := ix.AddClientTransaction(sip.RequestMethodInfo, sip.MagicCookie+".c", failing)
	r4, _ := ix.AddClientTransaction(sip.RequestMethodRefer, sip.MagicCookie+".d", alive)

	ix.SetExpire(r1.Ref(), 900)
	ix.SetExpire(r2.Ref(), 1000)
	ix.SetExpire(r3.Ref(), 950)
	ix.SetExpire(r4.Ref(), 2000) // not yet

	if n := ix.DeleteExpired(); n != 3 {
		t.Fatalf("DeleteExpired() = %d, want 3", n)
	}
	if ix.Len() != 1 {
		t.Fatalf("ix.Len() = %d, want 1", ix.Len())
	}

	want := []transact.Signal{transact.SignalExpired}
	if diff := cmp.Diff(want, alive.sigs); diff != "" {
		t.Fatalf("alive worker signals mismatch (-want +got):\n%s", diff)
	}
	if len(dead.sigs) != 0 {
		t.Fatalf("dead worker got signals: %v", dead.sigs)
	}

	// records with expire = 0 are never dropped
	ix.SetExpire(r4.Ref(), 0)
	now.Store(1 << 40)
	if n := ix.DeleteExpired(); n != 0 {
		t.Fatalf("DeleteExpired() = %d, want 0", n)
	}
}

func TestIndex_ParserErrorsAreSwallowedOnAdd(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	parser := mocksip.NewMockTransactionIDParser(ctrl)
	parser.EXPECT().
		ServerTransactionID(gomock.Any()).
		Return(sip.ServerTransactionID{}, sip.NewInvalidMessageError(sip.ErrMissingVia))

	ix := transact.NewIndex(&transact.IndexOptions{Parser: parser})

	if _, ok := ix.AddServerTransaction(newInvite(t, sip.MagicCookie+".a"), &testWorker{name: "w1"}); ok {
		t.Fatalf("AddServerTransaction() ok = true, want false on parser error")
	}
	if ix.Len() != 0 {
		t.Fatalf("ix.Len() = %d, want 0", ix.Len())
	}
}

func TestIndex_ParserErrorSurfacesOnRequestMatch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	parser := mocksip.NewMockTransactionIDParser(ctrl)
	parser.EXPECT().
		ServerTransactionID(gomock.Any()).
		Return(sip.ServerTransactionID{}, sip.NewInvalidMessageError(sip.ErrMissingCSeq))

	ix := transact.NewIndex(&transact.IndexOptions{Parser: parser})

	_, err := ix.GetServerTransactionByRequest(newInvite(t, sip.MagicCookie+".a"))
	if !errors.Is(err, sip.ErrInvalidMessage) {
		t.Fatalf("GetServerTransactionByRequest() error = %v, want %v", err, sip.ErrInvalidMessage)
	}
}

func TestIndex_DebugString(t *testing.T) {
	t.Parallel()

	ix := transact.NewIndex(nil)
	if got := ix.DebugString(); got != "(no transactions)" {
		t.Fatalf("DebugString() = %q, want %q", got, "(no transactions)")
	}

	ix.AddClientTransaction(sip.RequestMethodInvite, sip.MagicCookie+".a", &testWorker{name: "w1"})
	if got := ix.DebugString(); got == "" || got == "(no transactions)" {
		t.Fatalf("DebugString() = %q, want a record line", got)
	}
}
