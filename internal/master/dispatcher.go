// internal/master/dispatcher.go
package master

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"job-dispatch/internal/domain"
	"job-dispatch/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	// JobTimeout bounds how long a sent job may wait for its reply.
	JobTimeout time.Duration
	// OriginTag is stamped on every originated request.
	OriginTag string
}

// pendingRequest is the single in-flight job. Events are matched against it
// by pointer, never by job id, since ids are random and may repeat.
type pendingRequest struct {
	req    domain.JobRequest
	worker domain.WorkerHandle
	sentAt time.Time
	timer  *time.Timer
	cancel context.CancelFunc
	ctx    context.Context
	span   trace.Span
}

type resolution struct {
	pending  *pendingRequest
	reply    domain.JobReply
	timedOut bool
}

// Dispatcher originates one job per tick, round-robin over the current
// workers, and resolves it exactly once: by reply or by timeout.
// All state transitions happen on the goroutine running Run.
type Dispatcher struct {
	directory domain.WorkerDirectory
	transport domain.WorkerTransport
	ids       domain.JobIDGenerator
	outcomes  domain.OutcomeHandler
	cfg       DispatcherConfig
	now       func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer

	ticks   chan struct{}
	events  chan resolution
	done    chan struct{}
	running sync.Once

	// Owned by the Run goroutine.
	counter uint64
	pending *pendingRequest

	statusMu sync.RWMutex
	status   domain.DispatcherStatus
}

// NewDispatcher creates a dispatcher. Call Run to start it.
func NewDispatcher(
	directory domain.WorkerDirectory,
	transport domain.WorkerTransport,
	ids domain.JobIDGenerator,
	outcomes domain.OutcomeHandler,
	cfg DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	if cfg.OriginTag == "" {
		cfg.OriginTag = domain.OriginRobot
	}
	return &Dispatcher{
		directory: directory,
		transport: transport,
		ids:       ids,
		outcomes:  outcomes,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With("component", "dispatcher"),
		tracer:    otel.Tracer("job-dispatch-dispatcher"),
		ticks:     make(chan struct{}, 1),
		events:    make(chan resolution, 4),
		done:      make(chan struct{}),
		status:    domain.DispatcherStatus{State: domain.StateIdle},
	}
}

var _ domain.Ticker = (*Dispatcher)(nil)

// Tick asks the dispatcher to originate a job. It never blocks; a tick that
// arrives while another is still queued is dropped.
func (d *Dispatcher) Tick() {
	select {
	case d.ticks <- struct{}{}:
	default:
		metrics.TicksSkippedTotal.WithLabelValues("coalesced").Inc()
		d.logger.Debug("tick coalesced with a queued tick")
	}
}

// Run processes ticks, replies and timeouts until ctx is done. It may only
// be called once.
func (d *Dispatcher) Run(ctx context.Context) error {
	started := false
	d.running.Do(func() { started = true })
	if !started {
		return fmt.Errorf("dispatcher already running")
	}
	defer close(d.done)

	d.logger.Info("dispatcher started", "job_timeout", d.cfg.JobTimeout)
	for {
		select {
		case <-ctx.Done():
			d.abandonPending()
			d.logger.Info("dispatcher stopped", "dispatched", d.counter)
			return ctx.Err()
		case <-d.ticks:
			d.handleTick(ctx)
		case ev := <-d.events:
			d.handleResolution(ev)
		}
	}
}

// Status returns a snapshot of the dispatcher state. Safe for concurrent use.
func (d *Dispatcher) Status() domain.DispatcherStatus {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	st := d.status
	if st.PendingSince != nil {
		since := *st.PendingSince
		st.PendingSince = &since
	}
	return st
}

func (d *Dispatcher) handleTick(ctx context.Context) {
	if d.pending != nil {
		metrics.TicksSkippedTotal.WithLabelValues("in_flight").Inc()
		d.logger.Info("job still in flight, skipping tick", "job_id", d.pending.req.JobID)
		return
	}

	workers := d.directory.Snapshot()
	if len(workers) == 0 {
		metrics.TicksSkippedTotal.WithLabelValues("no_workers").Inc()
		d.logger.Warn(domain.ErrNoWorkersAvailable.Error())
		return
	}

	selected := workers[d.counter%uint64(len(workers))]
	req := domain.JobRequest{
		JobID:     d.ids.Next(),
		OriginTag: d.cfg.OriginTag,
		CreatedAt: d.now(),
	}

	spanCtx, span := d.tracer.Start(ctx, "dispatcher.Dispatch",
		trace.WithAttributes(
			attribute.String("job.id", req.JobID),
			attribute.String("worker.id", selected.ID),
			attribute.String("worker.addr", selected.Addr),
		))
	sendCtx, cancel := context.WithTimeout(spanCtx, d.cfg.JobTimeout)

	p := &pendingRequest{
		req:    req,
		worker: selected,
		sentAt: req.CreatedAt,
		cancel: cancel,
		ctx:    spanCtx,
		span:   span,
	}
	p.timer = time.AfterFunc(d.cfg.JobTimeout, func() {
		d.post(resolution{pending: p, timedOut: true})
	})

	d.pending = p
	d.counter++
	d.setStatus(p)
	metrics.JobsDispatchedTotal.WithLabelValues(selected.ID).Inc()
	d.logger.Info("dispatching job", "job_id", req.JobID, "worker", selected.String(), "dispatched", d.counter)

	go d.send(sendCtx, p)
}

// send runs off the loop goroutine. Transport errors are not outcomes; the
// job then resolves through its timeout.
func (d *Dispatcher) send(ctx context.Context, p *pendingRequest) {
	reply, err := d.transport.Send(ctx, p.worker, p.req)
	if err != nil {
		d.logger.Error("failed to send job to worker",
			"job_id", p.req.JobID, "worker", p.worker.String(), "error", err)
		p.span.RecordError(err)
		return
	}
	d.post(resolution{pending: p, reply: reply})
}

func (d *Dispatcher) post(ev resolution) {
	select {
	case d.events <- ev:
	case <-d.done:
	}
}

func (d *Dispatcher) handleResolution(ev resolution) {
	p := d.pending
	if p == nil || ev.pending != p {
		if !ev.timedOut {
			metrics.UnmatchedRepliesTotal.Inc()
			d.logger.Debug("discarding reply for resolved job",
				"job_id", ev.pending.req.JobID, "error", domain.ErrUnmatchedReply)
		}
		return
	}

	p.timer.Stop()
	p.cancel()
	d.pending = nil
	d.setStatus(nil)

	if ev.timedOut {
		p.span.RecordError(domain.ErrRequestTimeout)
		p.span.SetStatus(codes.Error, domain.ReasonTimedOut)
		d.deliver(func() {
			d.outcomes.OnFailed(p.ctx, domain.JobFailed{
				JobID:  p.req.JobID,
				Worker: p.worker,
				Reason: domain.ReasonTimedOut,
			})
		})
	} else {
		p.span.SetStatus(codes.Ok, "job completed")
		d.deliver(func() {
			d.outcomes.OnCompleted(p.ctx, domain.JobCompleted{
				JobID:   p.req.JobID,
				Worker:  p.worker,
				Payload: ev.reply.Text,
				Latency: d.now().Sub(p.sentAt),
			})
		})
	}
	p.span.End()
}

// deliver shields the loop from a misbehaving outcome handler.
func (d *Dispatcher) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("outcome handler panicked", "panic", r)
		}
	}()
	fn()
}

// abandonPending drops the in-flight job on shutdown without an outcome.
func (d *Dispatcher) abandonPending() {
	p := d.pending
	if p == nil {
		return
	}
	p.timer.Stop()
	p.cancel()
	p.span.SetStatus(codes.Error, "dispatcher stopped")
	p.span.End()
	d.pending = nil
	d.setStatus(nil)
	d.logger.Warn("abandoning in-flight job on shutdown", "job_id", p.req.JobID)
}

func (d *Dispatcher) setStatus(p *pendingRequest) {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()

	d.status.Dispatched = d.counter
	if p == nil {
		d.status.State = domain.StateIdle
		d.status.PendingJobID = ""
		d.status.PendingWorker = ""
		d.status.PendingSince = nil
		return
	}
	since := p.sentAt
	d.status.State = domain.StateAwaiting
	d.status.PendingJobID = p.req.JobID
	d.status.PendingWorker = p.worker.String()
	d.status.PendingSince = &since
}
