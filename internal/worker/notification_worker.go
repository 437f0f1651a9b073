package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kinetix/ima-backend/internal/events"
)

const defaultQueueSize = 256

// EventHandler consumes one event off the queue.
type EventHandler interface {
	Handle(ctx context.Context, event events.Event) error
}

// NotificationWorker moves event delivery off the request path. The dispatcher
// only enqueues; a single goroutine drains the queue in publish order.
type NotificationWorker struct {
	handler EventHandler
	logger  *zap.Logger
	queue   chan events.Event
	wg      sync.WaitGroup
}

// NewNotificationWorker builds a worker with a bounded queue.
func NewNotificationWorker(handler EventHandler, logger *zap.Logger, queueSize int) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		handler: handler,
		logger:  logger,
		queue:   make(chan events.Event, queueSize),
	}
}

// Subscribe registers the worker for every incident event type.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventIncidentCreated,
		events.EventIncidentUpdated,
		events.EventIncidentStateChanged,
	} {
		dispatcher.Subscribe(eventType, w.Enqueue)
	}
}

// Enqueue never blocks. Events are dropped with a warning when the queue is full.
func (w *NotificationWorker) Enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("incident_id", event.IncidentID))
	}
	return nil
}

// Start drains the queue until ctx is cancelled, then delivers what is left.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case event := <-w.queue:
				w.deliver(ctx, event)
			case <-ctx.Done():
				w.drain()
				return
			}
		}
	}()
}

// Wait blocks until the worker goroutine has exited.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

func (w *NotificationWorker) drain() {
	for {
		select {
		case event := <-w.queue:
			w.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) {
	if w.handler == nil {
		return
	}
	if err := w.handler.Handle(ctx, event); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("incident_id", event.IncidentID),
			zap.Error(err))
	}
}
