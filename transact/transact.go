// Package transact implements the transaction state registry: an
// in-memory index of SIP client and server transactions with the
// matching rules of RFC 3261 Section 17 and the RFC 2543 ACK fallback,
// plus the single-owner dispatcher that serializes access to it.
package transact

//go:generate errtrace -w .

import (
	"github.com/sipward/sipward/internal/errorutil"
)

// Error represents a transaction registry error.
type Error = errorutil.Error

const (
	ErrTransactionNotFound Error = "transaction not found"
	ErrAmbiguousWorker     Error = "multiple transactions for worker"
	ErrDispatcherClosed    Error = "dispatcher closed"
)

// Ref is the opaque identity of a registry record. It is assigned at
// creation, stays stable across updates and is never reused.
// The zero Ref is invalid.
type Ref uint64

// Kind discriminates client and server transaction records.
type Kind string

const (
	KindClient Kind = "client"
	KindServer Kind = "server"
)

// Signal is a message delivered to a worker out of band.
type Signal string

// SignalExpired tells the worker its transaction was evicted by the
// expiry sweep so it can unwind.
const SignalExpired Signal = "expired"

// Worker is the handle of the process driving a transaction. The
// registry only probes liveness and delivers best-effort signals;
// scheduling is the worker's own business.
//
// The registry compares handles with ==, so implementations must be
// comparable; a pointer receiver is the usual shape.
type Worker interface {
	// Alive reports whether the worker can still receive signals.
	Alive() bool
	// Deliver hands a signal to the worker. It must not block
	// indefinitely; an error means the signal was dropped.
	Deliver(sig Signal) error
}
