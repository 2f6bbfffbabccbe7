package sip

//go:generate mockgen -source parser.go -destination mocksip/mock_parser.go -package mocksip

import (
	"braces.dev/errtrace"

	"github.com/sipward/sipward/internal/util"
)

// TransactionIDParser derives transaction identifiers from messages.
// The transaction registry depends on this interface only; [Parser] is
// the default implementation.
type TransactionIDParser interface {
	// ClientTransactionID derives the client transaction id a response
	// should be matched with.
	ClientTransactionID(res *Response) (ClientTransactionID, error)
	// ServerTransactionID derives the server transaction id of a request.
	// For an ACK sent by an RFC 2543 implementation it returns
	// [ErrIs2543Ack] and the caller must use the 2543 matching algorithm.
	ServerTransactionID(req *Request) (ServerTransactionID, error)
	// ServerTransactionAckID2543 derives the RFC 2543 ACK id of a request.
	ServerTransactionAckID2543(req *Request) (AckID2543, error)
	// Tag extracts the tag of a From/To header.
	Tag(na NameAddr) (string, bool)
}

// Parser implements [TransactionIDParser] on the message model of this
// package.
type Parser struct{}

// ClientTransactionID implements [TransactionIDParser].
func (Parser) ClientTransactionID(res *Response) (ClientTransactionID, error) {
	via, ok := res.TopVia()
	if !ok {
		return zeroClientTxID, errtrace.Wrap(NewInvalidMessageError(ErrMissingVia))
	}
	branch, ok := via.Branch()
	if !ok || branch == "" {
		return zeroClientTxID, errtrace.Wrap(NewInvalidMessageError(ErrMissingBranch))
	}
	if res.CSeq.Method == "" {
		return zeroClientTxID, errtrace.Wrap(NewInvalidMessageError(ErrMissingCSeq))
	}
	return ClientTransactionID{
		Branch: branch,
		Method: res.CSeq.Method.ToUpper(),
	}, nil
}

// ServerTransactionID implements [TransactionIDParser].
func (Parser) ServerTransactionID(req *Request) (ServerTransactionID, error) {
	via, ok := req.TopVia()
	if !ok {
		return zeroServerTxID, errtrace.Wrap(NewInvalidMessageError(ErrMissingVia))
	}

	if branch, ok := via.Branch(); ok && IsRFC3261Branch(branch) {
		return ServerTransactionID{
			Branch: branch,
			SentBy: via.SentBy(),
			Method: srvTxMethod(req),
		}, nil
	}

	// RFC 2543 range. ACKs carry the To tag of the final response, so
	// they can never be matched by the key of the INVITE that created
	// the transaction.
	if req.Method.Equal(RequestMethodAck) {
		return zeroServerTxID, errtrace.Wrap(ErrIs2543Ack)
	}
	return errtrace.Wrap2(makeServerTxID2543(req, via))
}

func makeServerTxID2543(req *Request, via ViaHop) (ServerTransactionID, error) {
	fromTag, ok := req.From.Tag()
	if !ok || fromTag == "" {
		return zeroServerTxID, errtrace.Wrap(NewInvalidMessageError(ErrMissingFromTag))
	}

	id := ServerTransactionID{
		Method:  srvTxMethod(req),
		URI:     util.LCase(req.URI.String()),
		FromTag: fromTag,
		CallID:  req.CallID,
		CSeqNum: req.CSeq.Num,
		Via:     util.LCase(via.String()),
	}
	id.ToTag, _ = req.To.Tag()
	return id, nil
}

// ServerTransactionAckID2543 implements [TransactionIDParser].
func (Parser) ServerTransactionAckID2543(req *Request) (AckID2543, error) {
	fromTag, ok := req.From.Tag()
	if !ok || fromTag == "" {
		return zeroAckID2543, errtrace.Wrap(NewInvalidMessageError(ErrMissingFromTag))
	}
	if !req.URI.IsValid() {
		return zeroAckID2543, errtrace.Wrap(NewInvalidMessageError("missing Request-URI"))
	}
	return AckID2543{
		URI:     util.LCase(req.URI.String()),
		FromTag: fromTag,
		CallID:  req.CallID,
		CSeqNum: req.CSeq.Num,
	}, nil
}

// Tag implements [TransactionIDParser].
func (Parser) Tag(na NameAddr) (string, bool) {
	return na.Tag()
}

// CSeq method with ACK folded to INVITE: the ACK concludes the INVITE
// transaction it belongs to.
func srvTxMethod(req *Request) RequestMethod {
	if req.CSeq.Method.Equal(RequestMethodAck) {
		return RequestMethodInvite
	}
	return req.CSeq.Method.ToUpper()
}
