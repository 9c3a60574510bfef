package events

// Subscriber is an interface for event consumers.
// Implementations adapt the event stream to a transport or a side effect
// such as cache invalidation.
type Subscriber interface {
	// Send delivers an event to the subscriber.
	// Implementations should be non-blocking.
	Send(Event) error

	// Close cleanly shuts down the subscriber.
	Close() error
}

// Func adapts a function to the Subscriber interface.
func Func(fn func(Event) error) Subscriber {
	return &funcSubscriber{fn: fn}
}

type funcSubscriber struct {
	fn func(Event) error
}

func (f *funcSubscriber) Send(e Event) error { return f.fn(e) }

func (f *funcSubscriber) Close() error { return nil }
