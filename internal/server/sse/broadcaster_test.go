package sse

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// streamRecorder is a ResponseWriter and Flusher safe to read while a
// stream is being written.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
}

func (s *streamRecorder) Header() http.Header { return s.header }

func (s *streamRecorder) WriteHeader(int) {}

func (s *streamRecorder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *streamRecorder) Flush() {}

func (s *streamRecorder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func start(t *testing.T, b *Broadcaster) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestBroadcaster_StreamsEvents(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroadcaster(&logger)
	stop := start(t, b)
	defer stop()

	reqCtx, cancelReq := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/updates/stream", nil).WithContext(reqCtx)
	rec := &streamRecorder{header: http.Header{}}
	served := make(chan struct{})
	go func() {
		b.ServeHTTP(rec, req)
		close(served)
	}()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	b.Broadcast(Event{Event: "record.created", ID: "1", Data: map[string]any{"resource": "taxon", "id": "42"}})

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(rec.String()), []byte("event: record.created"))
	}, time.Second, 5*time.Millisecond)

	cancelReq()
	<-served
	out := rec.String()
	assert.Contains(t, out, "event: connected")
	assert.Contains(t, out, "id: 1\n")
	assert.Contains(t, out, `data: {"id":"42","resource":"taxon"}`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBroadcaster_ShutdownEndsStreams(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroadcaster(&logger)
	stop := start(t, b)

	rec := &streamRecorder{header: http.Header{}}
	served := make(chan struct{})
	go func() {
		b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		close(served)
	}()
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	stop()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end on shutdown")
	}
	assert.Equal(t, 0, b.ClientCount())
}

func TestBroadcaster_ServeAfterShutdown(t *testing.T) {
	logger := zerolog.Nop()
	b := NewBroadcaster(&logger)
	start(t, b)()

	// Fill the registration buffer so ServeHTTP can only leave through done.
	for i := 0; i < cap(b.newClients); i++ {
		b.newClients <- make(chan Event)
	}
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(&streamRecorder{header: http.Header{}}, httptest.NewRequest(http.MethodGet, "/", nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeHTTP blocked after shutdown")
	}
}
