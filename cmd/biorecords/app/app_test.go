package app

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	logger := zerolog.Nop()
	app, err := New("1.0.0", "abc123", "2024-01-01", "test",
		WithConfig(&Config{Database: MemoryDatabase, LogFormat: "json"}),
		WithLogger(&logger))
	require.NoError(t, err)
	return app
}

func TestNew(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, "1.0.0", app.Version())
	assert.Equal(t, "abc123", app.Commit())
	assert.Equal(t, "2024-01-01", app.Date())
	assert.Equal(t, "test", app.BuiltBy())
	assert.Equal(t, MemoryDatabase, app.Database())
	assert.NotNil(t, app.Logger())
	assert.Equal(t, 8080, app.ServerConfig().Port)
}

func TestStoreSingleton(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	stores := make([]any, 8)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := app.Store(ctx)
			assert.NoError(t, err)
			stores[i] = st
		}(i)
	}
	wg.Wait()
	for _, st := range stores[1:] {
		assert.Same(t, stores[0], st)
	}

	require.NoError(t, app.Shutdown(ctx))
	require.NoError(t, app.Shutdown(ctx))
}
