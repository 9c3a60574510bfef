package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/biorecords/biorecords/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockSubscriber records the events it receives.
type mockSubscriber struct {
	events []Event
	mu     sync.Mutex
	closed bool
}

func (m *mockSubscriber) Send(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSubscriber) received() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *mockSubscriber) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// runBroker starts b and returns a stop function that waits for Run to exit.
func runBroker(t *testing.T, b *Broker) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("broker did not stop")
		}
	}
}

func TestBroker_DeliversRecordEvents(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroker(&logger)
	stop := runBroker(t, b)
	defer stop()

	sub := &mockSubscriber{}
	b.Subscribe(sub)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b.PublishEvent(FromChange(store.Change{Resource: "taxon", Action: store.ActionCreated, ID: "42"}, at))

	require.Eventually(t, func() bool { return len(sub.received()) == 1 }, time.Second, 5*time.Millisecond)
	got := sub.received()[0]
	assert.Equal(t, RecordCreated, got.Type)
	assert.Equal(t, RecordData{Resource: "taxon", ID: "42"}, got.Data)
	assert.Equal(t, at, got.Timestamp)
	assert.Equal(t, int64(1), b.EventsPublished())
}

func TestBroker_ShutdownClosesSubscribers(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroker(&logger)
	stop := runBroker(t, b)

	sub1, sub2 := &mockSubscriber{}, &mockSubscriber{}
	b.Subscribe(sub1)
	b.Subscribe(sub2)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 2 }, time.Second, 5*time.Millisecond)

	stop()
	assert.Equal(t, 0, b.SubscriberCount())
	assert.True(t, sub1.isClosed())
	assert.True(t, sub2.isClosed())
}

func TestBroker_SubscribeBeforeRun(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroker(&logger)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.Subscribe(&mockSubscriber{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe blocked before Run")
	}

	stop := runBroker(t, b)
	defer stop()
	require.Eventually(t, func() bool { return b.SubscriberCount() == 5 }, time.Second, 5*time.Millisecond)
}

func TestBroker_Unsubscribe(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroker(&logger)
	stop := runBroker(t, b)
	defer stop()

	sub := &mockSubscriber{}
	fn := Func(func(Event) error { return nil })
	b.Subscribe(sub)
	b.Subscribe(fn)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 2 }, time.Second, 5*time.Millisecond)

	b.Unsubscribe(sub)
	b.Unsubscribe(fn)
	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, sub.isClosed())
}

func TestBroker_PublishDropsWhenFull(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroker(&logger)

	for i := 0; i < cap(b.events)+3; i++ {
		b.Publish(RecordUpdated, nil)
	}
	assert.Equal(t, int64(cap(b.events)), b.EventsPublished())
	assert.Equal(t, int64(3), b.EventsDropped())
	assert.Equal(t, cap(b.events), b.QueueDepth())
}

func TestForAction(t *testing.T) {
	tests := []struct {
		action store.Action
		want   EventType
	}{
		{store.ActionCreated, RecordCreated},
		{store.ActionUpdated, RecordUpdated},
		{store.ActionDeleted, RecordDeleted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ForAction(tt.action), string(tt.action))
	}
}
