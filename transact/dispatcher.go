package transact

import (
	"context"
	"log/slog"
	"time"

	"braces.dev/errtrace"
	"github.com/qmuntal/stateless"

	"github.com/sipward/sipward/log"
)

// DispatcherOptions are the options for a [Dispatcher].
type DispatcherOptions struct {
	// Index is the registry the dispatcher owns.
	// If nil, an empty index with default options is used.
	Index *Index
	// SweepInterval is the period of the expiry sweep.
	// If 0, 1 minute is used. If negative, the sweep is disabled.
	SweepInterval time.Duration
	// Logger is the logger. If nil, the [log.Default] is used.
	Logger *slog.Logger
}

func (o *DispatcherOptions) index() *Index {
	if o == nil || o.Index == nil {
		return NewIndex(nil)
	}
	return o.Index
}

func (o *DispatcherOptions) sweepInterval() time.Duration {
	if o == nil || o.SweepInterval == 0 {
		return time.Minute
	}
	return o.SweepInterval
}

func (o *DispatcherOptions) log() *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

const (
	dispatcherStateCreated = "created"
	dispatcherStateRunning = "running"
	dispatcherStateClosed  = "closed"
)

const (
	dispatcherTriggerStart = "start"
	dispatcherTriggerClose = "close"
)

// Dispatcher is the single owner of an [Index]. Its mailbox serializes
// every registry operation: a matcher enqueued after an add observes
// that add. Workers never share the index by reference; they talk to
// the dispatcher.
type Dispatcher struct {
	idx        *Index
	sweepEvery time.Duration
	log        *slog.Logger

	fsm   *stateless.StateMachine
	calls chan dispatcherCall
	quit  chan struct{}
	done  chan struct{}
}

type dispatcherCall struct {
	fn   func(ix *Index)
	done chan struct{}
}

// NewDispatcher creates a new [Dispatcher].
// Options are optional, if nil, default values are used (see [DispatcherOptions]).
func NewDispatcher(opts *DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		idx:        opts.index(),
		sweepEvery: opts.sweepInterval(),
		log:        opts.log(),
		calls:      make(chan dispatcherCall),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	fsm := stateless.NewStateMachine(dispatcherStateCreated)
	fsm.Configure(dispatcherStateCreated).
		Permit(dispatcherTriggerStart, dispatcherStateRunning).
		Permit(dispatcherTriggerClose, dispatcherStateClosed)
	fsm.Configure(dispatcherStateRunning).
		OnEntry(func(_ context.Context, _ ...any) error {
			go d.run()
			return nil
		}).
		Permit(dispatcherTriggerClose, dispatcherStateClosed)
	fsm.Configure(dispatcherStateClosed).
		OnEntry(func(_ context.Context, _ ...any) error {
			close(d.quit)
			return nil
		})
	d.fsm = fsm
	return d
}

// Start launches the dispatcher loop. It fails if the dispatcher was
// already started or closed.
func (d *Dispatcher) Start(ctx context.Context) error {
	return errtrace.Wrap(d.fsm.FireCtx(ctx, dispatcherTriggerStart))
}

// Close stops the dispatcher loop. Pending mailbox calls fail with
// [ErrDispatcherClosed]. Close is idempotent only in the sense that a
// second call reports the FSM rejection, never a panic.
func (d *Dispatcher) Close(ctx context.Context) error {
	wasRunning := d.fsm.MustState() == dispatcherStateRunning
	if err := d.fsm.FireCtx(ctx, dispatcherTriggerClose); err != nil {
		return errtrace.Wrap(err)
	}
	if !wasRunning {
		// loop never ran, nothing to wait for
		close(d.done)
		return nil
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return errtrace.Wrap(ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	var sweep <-chan time.Time
	if d.sweepEvery > 0 {
		tkr := time.NewTicker(d.sweepEvery)
		defer tkr.Stop()
		sweep = tkr.C
	}

	for {
		select {
		case <-d.quit:
			return
		case call := <-d.calls:
			call.fn(d.idx)
			close(call.done)
		case <-sweep:
			if n := d.idx.DeleteExpired(); n > 0 {
				d.log.LogAttrs(context.Background(), slog.LevelDebug,
					"expiry sweep evicted transactions",
					slog.Int("count", n),
				)
			}
		}
	}
}

// Do runs fn inside the dispatcher loop with exclusive access to the
// index and waits for it to finish. It fails with [ErrDispatcherClosed]
// once the dispatcher shuts down.
func (d *Dispatcher) Do(ctx context.Context, fn func(ix *Index)) error {
	call := dispatcherCall{fn: fn, done: make(chan struct{})}
	select {
	case d.calls <- call:
	case <-d.quit:
		return errtrace.Wrap(ErrDispatcherClosed)
	case <-ctx.Done():
		return errtrace.Wrap(ctx.Err())
	}

	select {
	case <-call.done:
		return nil
	case <-ctx.Done():
		return errtrace.Wrap(ctx.Err())
	}
}

// ReportWorkerDown drops every record of a worker that died. Worker
// death is reported asynchronously; a worker that dies silently stays
// tracked until its records expire.
func (d *Dispatcher) ReportWorkerDown(ctx context.Context, worker Worker) error {
	return errtrace.Wrap(d.Do(ctx, func(ix *Index) {
		if n := ix.DeleteByWorker(worker); n > 0 {
			d.log.LogAttrs(ctx, slog.LevelDebug,
				"dropped transactions of dead worker",
				slog.Int("count", n),
			)
		}
	}))
}

// State returns the lifecycle state name, for diagnostics.
func (d *Dispatcher) State() string {
	s, _ := d.fsm.MustState().(string)
	return s
}
