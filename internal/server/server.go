package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/biorecords/biorecords/internal/server/cache"
	"github.com/biorecords/biorecords/internal/server/events"
	"github.com/biorecords/biorecords/internal/server/events/adapters"
	"github.com/biorecords/biorecords/internal/server/middleware"
	"github.com/biorecords/biorecords/internal/server/sse"
	ws "github.com/biorecords/biorecords/internal/server/websocket"
	"github.com/biorecords/biorecords/internal/store"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	store          *store.Store
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	rateLimiter    *middleware.RateLimiter
	counters       *middleware.Counters
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	startTime      time.Time
}

// New creates a new server instance serving st with the given
// configuration.
func New(st *store.Store, cfg Config, logger *zerolog.Logger) (*Server, error) {
	logger.Debug().Msg("Creating new server instance")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	broker := events.NewBroker(logger)
	wsHub := ws.NewHub(logger)
	sseBroadcaster := sse.NewBroadcaster(logger)

	// Subscribe transports to broker
	broker.Subscribe(adapters.NewWebSocketSubscriber(wsHub))
	broker.Subscribe(adapters.NewSSESubscriber(sseBroadcaster))
	logger.Debug().Msg("WebSocket and SSE transports subscribed")

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		store:          st,
		cache:          cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		counters:       &middleware.Counters{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
		},
		logger:    logger,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	if cfg.RateLimit > 0 {
		s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit, logger)
	}

	s.connectHooks()
	logger.Debug().Msg("Server instance created successfully")
	return s, nil
}

// connectHooks publishes every committed store change. The response cache
// is flushed before the hook returns so a read after a write never sees
// the old record; transports are fed through the broker.
func (s *Server) connectHooks() {
	invalidator := adapters.NewCacheInvalidator(s.cache)
	s.store.OnChange(func(c store.Change) {
		event := events.FromChange(c, time.Now())
		_ = invalidator.Send(event)
		s.broker.PublishEvent(event)
		s.logger.Debug().
			Str("resource", c.Resource).
			Str("action", string(c.Action)).
			Str("id", c.ID).
			Msg("Record event published")
	})
	s.logger.Info().Msg("Store hooks connected to event broker")
}

// Start starts background services (broker, WebSocket hub, SSE
// broadcaster, rate limiter sweeps).
func (s *Server) Start() {
	s.logger.Debug().Msg("Starting background services")

	s.run(s.broker.Run)
	s.run(s.wsHub.Run)
	s.run(s.sseBroadcaster.Run)
	if s.rateLimiter != nil {
		s.run(s.rateLimiter.Run)
	}

	s.logger.Debug().Msg("All background services started")
}

func (s *Server) run(fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Shutdown stops the background services and waits for them until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Background services shut down successfully")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return ctx.Err()
	}
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.config
}

// Cache returns the server's cache instance.
func (s *Server) Cache() *cache.Cache {
	return s.cache
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *ws.Hub {
	return s.wsHub
}

// SSEBroadcaster returns the SSE broadcaster.
func (s *Server) SSEBroadcaster() *sse.Broadcaster {
	return s.sseBroadcaster
}

// Broker returns the event broker for publishing events.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
