package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"transit-dashboard/internal/clock"
	"transit-dashboard/internal/logging"
	"transit-dashboard/internal/metrics"
)

// SyncStatus is what the synchronizer exposes: the latest snapshot plus
// loading and error state.
type SyncStatus struct {
	// Snapshot is nil until the first successful fetch.
	Snapshot  *Snapshot
	Loading   bool
	Error     string
	FetchedAt time.Time
	// Seq is the sequence number of the fetch that produced this state.
	Seq uint64
}

// poller keeps the most recent snapshot fresh: one fetch immediately, then
// one every interval until Stop. Every fetch, scheduled or manual, is tagged
// with a sequence number at dispatch; a result is applied only when it is
// newer than the last applied one, so a slow reply never overwrites fresher
// data. Results arriving after Stop are dropped.
type poller struct {
	source   SnapshotSource
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	onUpdate func(SyncStatus)

	mu         sync.Mutex
	status     SyncStatus
	dispatched uint64
	applied    uint64
	stopped    bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

type pollerOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// OnUpdate is called, outside the lock, after every applied result.
	OnUpdate func(SyncStatus)
}

func newPoller(source SnapshotSource, opts pollerOptions) *poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &poller{
		source:   source,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		clock:    opts.Clock,
		logger:   opts.Logger.With(slog.String("component", "snapshot_sync")),
		metrics:  opts.Metrics,
		onUpdate: opts.OnUpdate,
		status:   SyncStatus{Loading: true},
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// run fetches once right away and then on every tick until ctx is done or
// Stop is called. Scheduled fetches never overlap each other.
func (p *poller) run(ctx context.Context) {
	defer close(p.done)
	ctx, cancel := mergeCancel(ctx, p.ctx)
	defer cancel()

	p.Refresh(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh performs one fetch and applies its result. Manual refreshes call
// it directly; it does not touch the schedule. A failure caused by ctx being
// done is dropped without consuming the sequence, so an earlier fetch still
// in flight can apply.
func (p *poller) Refresh(ctx context.Context) SyncStatus {
	p.mu.Lock()
	if p.stopped {
		st := p.status
		p.mu.Unlock()
		return st
	}
	p.dispatched++
	seq := p.dispatched
	p.mu.Unlock()

	caller := ctx
	ctx, cancel := mergeCancel(ctx, p.ctx)
	defer cancel()
	fctx, fcancel := context.WithTimeout(ctx, p.timeout)
	defer fcancel()

	start := time.Now()
	snap, err := p.source.Fetch(fctx)
	elapsed := time.Since(start)

	if err != nil && caller.Err() != nil {
		// the caller gave up; this says nothing about the backend
		p.logger.Debug("dropping fetch abandoned by caller",
			slog.Uint64("seq", seq), slog.String("cause", caller.Err().Error()))
		p.metrics.ObservePoll(metrics.OutcomeStale, elapsed.Seconds(), 0)
		return p.Status()
	}

	st, applied := p.apply(seq, snap, err, elapsed)
	if !applied {
		return st
	}
	if p.onUpdate != nil {
		p.onUpdate(st)
	}
	return st
}

func (p *poller) apply(seq uint64, snap Snapshot, err error, elapsed time.Duration) (SyncStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return p.status, false
	}
	if seq <= p.applied {
		p.logger.Debug("discarding stale snapshot response",
			slog.Uint64("seq", seq), slog.Uint64("applied_seq", p.applied))
		p.metrics.ObservePoll(metrics.OutcomeStale, elapsed.Seconds(), 0)
		return p.status, false
	}
	p.applied = seq

	if err != nil {
		// keep the previous snapshot; only loading and error change
		p.status.Loading = false
		p.status.Error = errorMessage(err)
		p.status.Seq = seq
		logging.LogError(p.logger, "failed to fetch vehicles", err,
			slog.Uint64("seq", seq), slog.Duration("duration", elapsed))
		p.metrics.ObservePoll(metrics.OutcomeFailure, elapsed.Seconds(), 0)
		return p.status, true
	}

	s := snap
	if s.Vehicles == nil {
		s.Vehicles = []VehicleObservation{}
	}
	p.status = SyncStatus{
		Snapshot:  &s,
		Loading:   false,
		FetchedAt: p.clock.Now(),
		Seq:       seq,
	}
	logging.LogOperation(p.logger, "fetched vehicles",
		slog.Int("vehicles", len(s.Vehicles)),
		slog.Uint64("seq", seq),
		slog.Duration("duration", elapsed))
	p.metrics.ObservePoll(metrics.OutcomeSuccess, elapsed.Seconds(), len(s.Vehicles))
	return p.status, true
}

// Status returns the current state. The snapshot it points to is never
// modified after being stored.
func (p *poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Stop cancels the schedule and any in-flight fetch. Results that still
// arrive are dropped. Safe to call more than once; wait on Done for run to
// return.
func (p *poller) Stop() {
	p.once.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		p.cancel()
	})
}

// Done is closed when run returns.
func (p *poller) Done() <-chan struct{} {
	return p.done
}

// mergeCancel returns a context cancelled when either parent is.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
