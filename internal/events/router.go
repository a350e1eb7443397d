package events

import (
	"context"

	"go.uber.org/zap"
)

// Router dispatches deliveries by pattern. Every service queue receives every
// pattern from the fanout exchange, so unknown patterns are acknowledged.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

func (r *Router) Handle(pattern string, h HandlerFunc) {
	r.handlers[pattern] = h
}

func (r *Router) Dispatch(ctx context.Context, d Delivery) error {
	h, ok := r.handlers[d.Pattern]
	if !ok {
		r.logger.Debug("ignoring event",
			zap.String("pattern", d.Pattern),
			zap.String("messageId", d.MessageID),
		)
		return nil
	}
	return h(ctx, d)
}

// Patterns lists the patterns with a registered handler.
func (r *Router) Patterns() []string {
	patterns := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		patterns = append(patterns, p)
	}
	return patterns
}
