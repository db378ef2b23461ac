package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/serverwatch/internal/delivery"
	"github.com/hamed0406/serverwatch/internal/domain"
	"github.com/hamed0406/serverwatch/internal/probe"
	"github.com/hamed0406/serverwatch/internal/render"
	"github.com/hamed0406/serverwatch/internal/repo"
)

const tracerName = "github.com/hamed0406/serverwatch/internal/scheduler"

const defaultInitialDelay = 5 * time.Second

// Settings are the read-only tunables of the engine. config.Config implements it.
type Settings interface {
	PollInterval() time.Duration
	ProbeTimeout() time.Duration
	CacheTTL() time.Duration
}

// StatusQuerier is the query client as the monitor sees it.
type StatusQuerier interface {
	Status(ctx context.Context, t domain.Target) (domain.StatusRecord, probe.Source, error)
}

type Renderer interface {
	Render(t domain.Target, rec domain.StatusRecord) render.Payload
}

type Deliverer interface {
	Deliver(ctx context.Context, t domain.Target, p render.Payload) (delivery.Outcome, error)
}

// CycleReport summarizes one monitoring cycle.
type CycleReport struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int // previous task for the target still running
	NotDue    int // target's own poll interval has not elapsed
	Duration  time.Duration
	Err       error // registry failure; no task ran
}

// Monitor fans a periodic trigger out to one task per active target:
// query, render, deliver, persist. Tasks are isolated from each other.
type Monitor struct {
	logger   *zap.Logger
	registry repo.TargetRegistry
	client   StatusQuerier
	renderer Renderer
	tracker  Deliverer
	sink     repo.StatusSink
	settings Settings

	scope         string
	initialDelay  time.Duration
	maxConcurrent int
	tracer        trace.Tracer
	now           func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}

	tasks    sync.WaitGroup
	inflight sync.Map // domain.TargetID -> struct{}

	pollMu     sync.Mutex
	lastPolled map[domain.TargetID]time.Time
}

type Option func(*Monitor)

// WithScope restricts the monitor to the targets of one guild.
func WithScope(scope string) Option { return func(m *Monitor) { m.scope = scope } }

func WithInitialDelay(d time.Duration) Option {
	return func(m *Monitor) {
		if d >= 0 {
			m.initialDelay = d
		}
	}
}

// WithMaxConcurrent bounds the tasks of one cycle; 0 means one goroutine per target.
func WithMaxConcurrent(n int) Option {
	return func(m *Monitor) {
		if n >= 0 {
			m.maxConcurrent = n
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Monitor) { m.tracer = tp.Tracer(tracerName) }
}

func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

func NewMonitor(
	logger *zap.Logger,
	registry repo.TargetRegistry,
	client StatusQuerier,
	renderer Renderer,
	tracker Deliverer,
	sink repo.StatusSink,
	settings Settings,
	opts ...Option,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		logger:       logger,
		registry:     registry,
		client:       client,
		renderer:     renderer,
		tracker:      tracker,
		sink:         sink,
		settings:     settings,
		initialDelay: defaultInitialDelay,
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
		lastPolled:   make(map[domain.TargetID]time.Time),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start begins firing cycles: one after the initial delay, then one per poll
// interval. Tasks run on ctx, so Stop does not abort them. Starting a running
// monitor logs a warning and does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.logger.Warn("monitor_already_running")
		return
	}
	interval := m.settings.PollInterval()
	if interval <= 0 {
		m.logger.Info("monitor_disabled")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.loopDone = make(chan struct{})
	go m.loop(ctx, loopCtx, interval, m.loopDone)

	m.logger.Info("monitor_started",
		zap.Duration("interval", interval),
		zap.Duration("initial_delay", m.initialDelay),
		zap.String("scope", m.scope),
	)
}

// Stop cancels the trigger and returns once the loop has exited.
// In-flight tasks keep running; use Wait to drain them.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.loopDone
	m.cancel, m.loopDone = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("monitor_stopped")
}

// Wait blocks until every started task has settled or ctx ends.
func (m *Monitor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) loop(hostCtx, loopCtx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	// the loop can also end because hostCtx was cancelled; clear the running
	// state then so a later Start is not mistaken for a double start
	defer func() {
		m.mu.Lock()
		if m.loopDone == done {
			m.cancel()
			m.cancel, m.loopDone = nil, nil
		}
		m.mu.Unlock()
	}()

	first := time.NewTimer(m.initialDelay)
	defer first.Stop()
	select {
	case <-loopCtx.Done():
		return
	case <-first.C:
		m.fire(hostCtx)
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-loopCtx.Done():
			return
		case <-t.C:
			m.fire(hostCtx)
		}
	}
}

// fire runs a cycle without blocking the trigger, so a slow cycle may overlap the next one.
func (m *Monitor) fire(ctx context.Context) {
	m.tasks.Add(1)
	go func() {
		defer m.tasks.Done()
		m.RunCycle(ctx)
	}()
}

// RunCycle polls every active target that is due and waits for all tasks to settle.
func (m *Monitor) RunCycle(ctx context.Context) CycleReport {
	start := m.now()
	ctx, span := m.tracer.Start(ctx, "monitor.cycle", trace.WithAttributes(
		attribute.String("monitor.scope", m.scope),
	))
	defer span.End()

	var rep CycleReport
	targets, err := m.registry.ListActive(ctx, m.scope)
	if err != nil {
		m.logger.Warn("monitor_list_targets_failed", zap.String("scope", m.scope), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rep.Err = err
		return rep
	}
	if len(targets) == 0 {
		return rep
	}

	var sem chan struct{}
	if m.maxConcurrent > 0 {
		sem = make(chan struct{}, m.maxConcurrent)
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		failed    atomic.Int64
	)
	for _, t := range targets {
		if !m.due(t, start) {
			rep.NotDue++
			continue
		}
		if _, busy := m.inflight.LoadOrStore(t.ID, struct{}{}); busy {
			rep.Skipped++
			m.logger.Info("monitor_target_skipped", zap.String("target_id", string(t.ID)))
			continue
		}
		rep.Total++
		m.markPolled(t.ID, start)

		if sem != nil {
			sem <- struct{}{}
		}
		wg.Add(1)
		m.tasks.Add(1)
		go func() {
			defer m.tasks.Done()
			defer wg.Done()
			defer m.inflight.Delete(t.ID)
			if sem != nil {
				defer func() { <-sem }()
			}

			if err := m.runTask(ctx, t); err != nil {
				failed.Add(1)
				return
			}
			succeeded.Add(1)
		}()
	}
	wg.Wait()

	rep.Succeeded = int(succeeded.Load())
	rep.Failed = int(failed.Load())
	rep.Total += rep.Skipped
	rep.Duration = m.now().Sub(start)

	span.SetAttributes(
		attribute.Int("monitor.targets", rep.Total),
		attribute.Int("monitor.failed", rep.Failed),
	)
	m.logger.Info("monitor_cycle_done",
		zap.Int("total", rep.Total),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
		zap.Int("skipped", rep.Skipped),
		zap.Int("not_due", rep.NotDue),
		zap.Duration("duration", rep.Duration),
	)
	return rep
}

// due reports whether a target with its own, longer poll interval should be
// polled in a cycle starting at now. Half an engine tick of slack absorbs jitter.
func (m *Monitor) due(t domain.Target, now time.Time) bool {
	engine := m.settings.PollInterval()
	if t.PollInterval <= engine {
		return true
	}
	m.pollMu.Lock()
	last, ok := m.lastPolled[t.ID]
	m.pollMu.Unlock()
	return !ok || now.Sub(last) >= t.PollInterval-engine/2
}

func (m *Monitor) markPolled(id domain.TargetID, at time.Time) {
	m.pollMu.Lock()
	m.lastPolled[id] = at
	m.pollMu.Unlock()
}

// runTask handles one target. Every failure, panics included, ends here.
func (m *Monitor) runTask(ctx context.Context, t domain.Target) (err error) {
	ctx, span := m.tracer.Start(ctx, "monitor.target", trace.WithAttributes(
		attribute.String("target.id", string(t.ID)),
		attribute.String("target.scope", t.Scope),
		attribute.String("target.addr", t.Addr()),
	))
	log := m.logger.With(zap.String("target_id", string(t.ID)), zap.String("addr", t.Addr()))

	defer func() {
		if r := recover(); r != nil {
			cid := uuid.NewString()
			log.Error("monitor_task_panic",
				zap.String("correlation_id", cid),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("task panic (correlation_id=%s): %v", cid, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		}
		span.End()
	}()

	rec, src, err := m.client.Status(ctx, t)
	if err != nil {
		var ce *domain.ConfigError
		if errors.As(err, &ce) {
			log.Error("monitor_target_misconfigured", zap.Error(err))
		} else {
			log.Warn("monitor_status_failed", zap.Error(err))
		}
		return err
	}
	span.SetAttributes(
		attribute.String("status.source", src.String()),
		attribute.Bool("status.online", rec.Online()),
	)

	payload := m.renderer.Render(t, rec)

	outcome, derr := m.tracker.Deliver(ctx, t, payload)
	if derr != nil {
		log.Warn("delivery_failed", zap.Error(derr))
	}

	perr := m.persist(ctx, t.ID, rec)
	if perr != nil {
		log.Warn("persist_failed", zap.Error(perr))
	}

	log.Debug("monitor_target_done",
		zap.String("source", src.String()),
		zap.String("status", string(rec.Reachability)),
		zap.String("occupancy", rec.Occupancy()),
		zap.String("delivery", outcome.String()),
	)
	return multierr.Append(derr, perr)
}

// persist records status and history; one failing does not skip the other.
func (m *Monitor) persist(ctx context.Context, id domain.TargetID, rec domain.StatusRecord) error {
	if m.sink == nil {
		return nil
	}
	return multierr.Combine(
		m.sink.UpsertStatus(ctx, id, rec),
		m.sink.AppendHistory(ctx, id, rec),
	)
}
