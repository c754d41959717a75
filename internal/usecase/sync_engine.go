package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pildhora/pildhora-sync/internal/adapter/metrics"
	"github.com/pildhora/pildhora-sync/internal/domain"
)

// PassResult summarizes one completed sync pass.
type PassResult struct {
	Attempted  int       `json:"attempted"`
	Delivered  int       `json:"delivered"`
	Failed     int       `json:"failed"`
	Pending    int       `json:"pending"`
	FinishedAt time.Time `json:"finished_at"`
}

// SyncEngine drains the local outbox against the remote store. At most one
// pass runs at a time; a pass triggered while another is in flight is a no-op.
// Events that fail to deliver stay queued untouched for the next pass. There
// is no retry cap and no backoff escalation, only the fixed pass triggers.
type SyncEngine struct {
	queue     domain.EventQueue
	publisher domain.EventPublisher
	limiter   *rate.Limiter
	interval  time.Duration
	metrics   *metrics.AgentMetrics
	logger    *slog.Logger

	inFlight atomic.Bool
	trigger  chan struct{}

	mu     sync.Mutex
	subs   map[int]chan PassResult
	nextID int
	last   *PassResult
}

// NewSyncEngine creates a sync engine. limiter paces deliveries within a pass
// so a long-offline backlog does not burst the remote store; pass nil to
// disable pacing. metrics may be nil.
func NewSyncEngine(queue domain.EventQueue, publisher domain.EventPublisher, interval time.Duration, limiter *rate.Limiter, m *metrics.AgentMetrics, logger *slog.Logger) *SyncEngine {
	return &SyncEngine{
		queue:     queue,
		publisher: publisher,
		limiter:   limiter,
		interval:  interval,
		metrics:   m,
		logger:    logger.With("component", "sync_engine"),
		trigger:   make(chan struct{}, 1),
		subs:      make(map[int]chan PassResult),
	}
}

// Run executes passes until ctx is cancelled: once at startup to drain any
// backlog left by a previous process, then on every tick and on every
// TriggerNow call.
func (e *SyncEngine) Run(ctx context.Context) {
	e.logger.Info("sync engine started", "interval", e.interval)

	e.RunPass(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine stopped")
			return
		case <-ticker.C:
			e.RunPass(ctx)
		case <-e.trigger:
			e.RunPass(ctx)
		}
	}
}

// TriggerNow requests a pass outside the periodic schedule, e.g. right after
// an enqueue or when the device wakes. It never blocks; if a trigger is
// already queued the request coalesces with it.
func (e *SyncEngine) TriggerNow() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// RunPass attempts one sync pass. The returned bool is false when the pass
// was skipped because another one was already in flight; skipped passes do
// not notify subscribers.
func (e *SyncEngine) RunPass(ctx context.Context) (PassResult, bool) {
	if !e.inFlight.CompareAndSwap(false, true) {
		if e.metrics != nil {
			e.metrics.SyncPassesTotal.WithLabelValues("skipped").Inc()
		}
		return PassResult{}, false
	}
	defer e.inFlight.Store(false)

	var res PassResult

	events, err := e.queue.Pending(ctx)
	if err != nil {
		e.logger.Error("failed to read pending events", "error", err)
	}

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				break
			}
		}

		res.Attempted++
		if err := e.publisher.Publish(ctx, event); err != nil {
			res.Failed++
			if e.metrics != nil {
				e.metrics.DeliveryErrors.Inc()
			}
			e.logger.Warn("failed to deliver event, will retry on a later pass",
				"event_id", event.ID, "event_type", event.EventType, "error", err)
			continue
		}

		if err := e.queue.Ack(ctx, event.ID); err != nil {
			// The event was delivered but stays queued; the remote store
			// ignores the duplicate on redelivery.
			e.logger.Error("failed to ack delivered event", "event_id", event.ID, "error", err)
			continue
		}

		res.Delivered++
		if e.metrics != nil {
			e.metrics.EventsDelivered.Inc()
		}
	}

	if pending, err := e.queue.PendingCount(ctx); err == nil {
		res.Pending = pending
		if e.metrics != nil {
			e.metrics.OutboxPending.Set(float64(pending))
		}
	} else {
		e.logger.Error("failed to count pending events", "error", err)
	}
	res.FinishedAt = time.Now().UTC()

	if e.metrics != nil {
		e.metrics.SyncPassesTotal.WithLabelValues("completed").Inc()
	}
	if res.Attempted > 0 {
		e.logger.Info("sync pass completed",
			"attempted", res.Attempted, "delivered", res.Delivered,
			"failed", res.Failed, "pending", res.Pending)
	}

	e.mu.Lock()
	last := res
	e.last = &last
	for _, ch := range e.subs {
		// Latest result wins; a slow subscriber keeps only the newest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- res:
		default:
		}
	}
	e.mu.Unlock()

	return res, true
}

// Subscribe registers an observer for completed passes. The returned cancel
// func unregisters it and closes the channel.
func (e *SyncEngine) Subscribe() (<-chan PassResult, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	ch := make(chan PassResult, 1)
	e.subs[id] = ch

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// InFlight reports whether a pass is currently running.
func (e *SyncEngine) InFlight() bool {
	return e.inFlight.Load()
}

// LastPass returns the most recent completed pass, if any.
func (e *SyncEngine) LastPass() (PassResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return PassResult{}, false
	}
	return *e.last, true
}
