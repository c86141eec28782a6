package streaming

import (
	"context"
	"strconv"
	"sync"

	"phishguard/internal/domain/models"
	"phishguard/pkg/logger"
)

// EventBus distributes prediction events to NATS and local subscribers.
// It is registered as a dispatcher observer.
type EventBus struct {
	nats     *NATSPublisher
	minLevel models.RiskLevel
	logger   *logger.Logger

	mu          sync.RWMutex
	subscribers map[string]chan *PredictionEvent
	nextID      int
}

// NewEventBus creates a new event bus. nats may be nil; only verdicts at or
// above minLevel are published there.
func NewEventBus(nats *NATSPublisher, minLevel models.RiskLevel, log *logger.Logger) *EventBus {
	if minLevel.Rank() < 0 {
		minLevel = models.RiskLevelSuspicious
	}
	return &EventBus{
		nats:        nats,
		minLevel:    minLevel,
		logger:      log.WithComponent("event-bus"),
		subscribers: make(map[string]chan *PredictionEvent),
	}
}

// Name identifies the observer in logs and circuit breaker state
func (eb *EventBus) Name() string {
	return "event-bus"
}

// OnPrediction converts the outcome to an event and publishes it
func (eb *EventBus) OnPrediction(ctx context.Context, outcome *models.PredictionOutcome) error {
	return eb.Publish(ctx, NewPredictionEvent(outcome))
}

// Publish sends an event to every local subscriber and, when it is risky
// enough, to NATS. Only the NATS error is returned.
func (eb *EventBus) Publish(ctx context.Context, event *PredictionEvent) error {
	eb.mu.RLock()
	for id, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			eb.logger.Debug().Str("subscriber", id).Msg("subscriber channel full, dropping event")
		}
	}
	eb.mu.RUnlock()

	if eb.nats == nil || event.RiskLevel.Rank() < eb.minLevel.Rank() {
		return nil
	}
	return eb.nats.PublishPrediction(ctx, event)
}

// Subscribe creates a local subscription; call the returned func to cancel it
func (eb *EventBus) Subscribe(buffer int) (<-chan *PredictionEvent, func()) {
	if buffer <= 0 {
		buffer = 100
	}

	eb.mu.Lock()
	eb.nextID++
	id := strconv.Itoa(eb.nextID)
	ch := make(chan *PredictionEvent, buffer)
	eb.subscribers[id] = ch
	eb.mu.Unlock()

	eb.logger.Debug().Str("subscriber_id", id).Msg("new subscriber")

	unsubscribe := func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		if _, ok := eb.subscribers[id]; ok {
			close(ch)
			delete(eb.subscribers, id)
			eb.logger.Debug().Str("subscriber_id", id).Msg("subscriber removed")
		}
	}

	return ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Close drops every subscriber and closes NATS
func (eb *EventBus) Close() {
	eb.mu.Lock()
	for id, ch := range eb.subscribers {
		close(ch)
		delete(eb.subscribers, id)
	}
	eb.mu.Unlock()

	if eb.nats != nil {
		eb.nats.Close()
	}
}
