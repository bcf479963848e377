package event

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"BullionLedger/internal/observability"
)

// Handler consumes one event. A handler error is the handler's own
// problem: it is logged and isolated, never propagated back to the
// ledger mutation that already committed, and the event is not
// re-delivered. Handlers needing retries manage them internally.
type Handler interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, e Event) error
}

func (h HandlerFunc) Name() string                              { return h.HandlerName }
func (h HandlerFunc) Handle(ctx context.Context, e Event) error { return h.Fn(ctx, e) }

// Registry maps event types to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Type][]Handler),
	}
}

// Register adds a handler for an event type. Registration order is
// dispatch order.
func (r *Registry) Register(t Type, h Handler) {
	r.mu.Lock()
	r.handlers[t] = append(r.handlers[t], h)
	r.mu.Unlock()
}

// HandlersFor returns the handlers registered for t.
func (r *Registry) HandlersFor(t Type) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[t]
}

// ProcessedMarker flips the durable processed flag for an event, so a
// restart does not re-dispatch events that already ran.
type ProcessedMarker interface {
	MarkProcessed(ctx context.Context, eventID uuid.UUID) error
}

// Processor drains the queue in bounded batches and dispatches each
// event to all handlers registered for its type.
//
// The processor is schedule-agnostic and synchronous per batch; an
// external ticker invokes ProcessBatch periodically.
type Processor struct {
	queue    *Queue
	registry *Registry
	marker   ProcessedMarker // optional
	log      zerolog.Logger
	metrics  *observability.Metrics
}

func NewProcessor(queue *Queue, registry *Registry, marker ProcessedMarker, log zerolog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		queue:    queue,
		registry: registry,
		marker:   marker,
		log:      log,
		metrics:  metrics,
	}
}

// ProcessBatch drains up to maxCount events and returns how many were
// processed. Every dequeued event counts as processed exactly once,
// even when some of its handlers fail: a bad event must not block the
// queue, and successful handlers of the same event are never re-run.
func (p *Processor) ProcessBatch(ctx context.Context, maxCount int) int {
	processed := 0

	for processed < maxCount {
		if ctx.Err() != nil {
			break
		}

		e, ok := p.queue.Dequeue()
		if !ok {
			break
		}

		p.dispatch(ctx, e)
		processed++

		if p.marker != nil {
			if err := p.marker.MarkProcessed(ctx, e.EventID()); err != nil {
				p.log.Error().
					Err(err).
					Str("event_id", e.EventID().String()).
					Msg("mark event processed failed")
			}
		}
	}

	if p.metrics != nil {
		if processed > 0 {
			p.metrics.EventBatchSize.Observe(float64(processed))
		}
		p.metrics.EventQueueDepth.Set(float64(p.queue.Len()))
	}

	return processed
}

func (p *Processor) dispatch(ctx context.Context, e Event) {
	for _, h := range p.registry.HandlersFor(e.EventType()) {
		if err := h.Handle(ctx, e); err != nil {
			p.log.Error().
				Err(err).
				Str("event_type", e.EventType().String()).
				Str("event_id", e.EventID().String()).
				Str("handler", h.Name()).
				Msg("event handler failed")
			if p.metrics != nil {
				p.metrics.EventHandlerError.WithLabelValues(e.EventType().String(), h.Name()).Inc()
			}
			continue
		}
	}

	if p.metrics != nil {
		p.metrics.EventsProcessed.WithLabelValues(e.EventType().String()).Inc()
	}
}
