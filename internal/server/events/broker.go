package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Broker manages event distribution to multiple subscribers.
// It fans every published event out to all registered subscribers
// concurrently and waits for the fan-out before taking the next event.
type Broker struct {
	subscribers []Subscriber
	events      chan Event
	register    chan Subscriber
	unregister  chan Subscriber
	mu          sync.RWMutex
	logger      *zerolog.Logger
	now         func() time.Time

	published atomic.Int64
	dropped   atomic.Int64
}

// NewBroker creates a new event broker.
func NewBroker(logger *zerolog.Logger) *Broker {
	return &Broker{
		subscribers: make([]Subscriber, 0),
		events:      make(chan Event, 256),
		// Buffered so subscribers can be added before Run starts.
		register:   make(chan Subscriber, 16),
		unregister: make(chan Subscriber, 16),
		logger:     logger,
		now:        time.Now,
	}
}

// Run starts the broker's event loop. Should be called in a goroutine.
// The broker will run until the context is cancelled.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for _, sub := range b.subscribers {
				_ = sub.Close()
			}
			b.subscribers = nil
			b.mu.Unlock()
			b.logger.Info().Msg("Event broker shut down")
			return

		case sub := <-b.register:
			b.mu.Lock()
			b.subscribers = append(b.subscribers, sub)
			n := len(b.subscribers)
			b.mu.Unlock()
			b.logger.Debug().
				Int("total_subscribers", n).
				Msg("Subscriber registered")

		case sub := <-b.unregister:
			b.mu.Lock()
			for i, s := range b.subscribers {
				if s == sub {
					b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
					_ = s.Close()
					break
				}
			}
			n := len(b.subscribers)
			b.mu.Unlock()
			b.logger.Debug().
				Int("total_subscribers", n).
				Msg("Subscriber unregistered")

		case event := <-b.events:
			b.dispatch(event)
		}
	}
}

func (b *Broker) dispatch(event Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s Subscriber) {
			defer wg.Done()
			if err := s.Send(event); err != nil {
				b.logger.Warn().
					Err(err).
					Str("event_type", string(event.Type)).
					Msg("Failed to send event to subscriber")
			}
		}(sub)
	}
	wg.Wait()

	b.logger.Debug().
		Str("event_type", string(event.Type)).
		Int("subscribers", len(subs)).
		Msg("Event broadcasted")
}

// Publish queues an event for all subscribers. It never blocks; when the
// queue is full the event is dropped and counted.
func (b *Broker) Publish(eventType EventType, data any) {
	b.PublishEvent(Event{
		Type:      eventType,
		Timestamp: b.now(),
		Data:      data,
	})
}

// PublishEvent queues a prepared event.
func (b *Broker) PublishEvent(event Event) {
	select {
	case b.events <- event:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		b.logger.Warn().
			Str("event_type", string(event.Type)).
			Msg("Event channel full, event dropped")
	}
}

// Subscribe registers a new subscriber to receive events.
func (b *Broker) Subscribe(sub Subscriber) {
	b.register <- sub
}

// Unsubscribe removes a subscriber from receiving events.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.unregister <- sub
}

// SubscriberCount returns the current number of subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// EventsPublished returns the number of events accepted by Publish.
func (b *Broker) EventsPublished() int64 { return b.published.Load() }

// EventsDropped returns the number of events dropped because the queue was full.
func (b *Broker) EventsDropped() int64 { return b.dropped.Load() }

// QueueDepth returns the number of events waiting for dispatch.
func (b *Broker) QueueDepth() int { return len(b.events) }
