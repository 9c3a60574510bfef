package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/biorecords/biorecords/internal/server/cache"
	"github.com/biorecords/biorecords/internal/server/events"
	"github.com/biorecords/biorecords/internal/server/sse"
	ws "github.com/biorecords/biorecords/internal/server/websocket"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCacheInvalidator(t *testing.T) {
	c := cache.New(time.Minute, 0)
	inv := NewCacheInvalidator(c)

	tests := []struct {
		typ     events.EventType
		flushed bool
	}{
		{events.RecordCreated, true},
		{events.RecordUpdated, true},
		{events.RecordDeleted, true},
		{events.ClientConnected, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			c.Set("/api/v1/taxon", "page")
			require.NoError(t, inv.Send(events.Event{Type: tt.typ}))
			_, found := c.Get("/api/v1/taxon")
			assert.Equal(t, !tt.flushed, found)
		})
	}
	assert.NoError(t, inv.Close())
}

func TestWebSocketSubscriberForwardsEvents(t *testing.T) {
	logger := zerolog.Nop()
	hub := ws.NewHub(&logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	sub := NewWebSocketSubscriber(hub)
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, sub.Send(events.Event{
		Type:      events.RecordDeleted,
		Timestamp: at,
		Data:      events.RecordData{Resource: "document", ID: "9"},
	}))
	assert.NoError(t, sub.Close())
}

func TestSSESubscriberSendNeverBlocks(t *testing.T) {
	logger := zerolog.Nop()
	b := sse.NewBroadcaster(&logger)
	sub := NewSSESubscriber(b)

	// Without Run the broadcast queue fills up and further events are dropped.
	for i := 0; i < 300; i++ {
		require.NoError(t, sub.Send(events.Event{Type: events.RecordUpdated, Timestamp: time.Now()}))
	}
}
