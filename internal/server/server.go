package server

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/specs/internal/engine"
	"github.com/alfredjeanlab/specs/internal/events"
)

// SpecServer exposes the engine over HTTP and gRPC and fans out change
// events to NATS and SSE subscribers.
type SpecServer struct {
	engine    *engine.Engine
	publisher events.Publisher
	sseHub    *sseHub
	logger    *slog.Logger
}

// NewSpecServer returns a new SpecServer backed by the given engine and
// publisher. A nil logger uses slog.Default().
func NewSpecServer(e *engine.Engine, p events.Publisher, logger *slog.Logger) *SpecServer {
	if p == nil {
		p = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SpecServer{
		engine:    e,
		publisher: p,
		sseHub:    newSSEHub(),
		logger:    logger,
	}
}

// publish sends an event to NATS and to connected SSE clients.
// Both are best-effort; failures are logged but do not block the caller.
func (s *SpecServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
	s.broadcastEvent(topic, event)
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }
