package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
)

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by ctx, or Default.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}

// WithRequestID stores the request id in ctx and tags its logger with it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return withField(ctx, "request_id", requestID)
}

// RequestID returns the request id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTaxon tags the context logger with a taxon name id.
func WithTaxon(ctx context.Context, nameID int64) context.Context {
	return withField(ctx, "name_id", nameID)
}

// WithEncounter tags the context logger with an encounter id.
func WithEncounter(ctx context.Context, encounterID int64) context.Context {
	return withField(ctx, "encounter_id", encounterID)
}

// WithObsType tags the context logger with an observation type.
func WithObsType(ctx context.Context, obstype string) context.Context {
	return withField(ctx, "obstype", obstype)
}

func withField(ctx context.Context, key string, value any) context.Context {
	l := withValue(FromContext(ctx).With(), key, value).Logger()
	return WithLogger(ctx, &l)
}
