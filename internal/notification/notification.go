// Package notification delivers fire-and-forget events on quote ownership
// and status changes. Delivery failures are logged and swallowed; they never
// roll back the transition that produced them.
package notification

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Event struct {
	Type       string         `json:"type"`
	QuoteID    snowflake.ID   `json:"quote_id"`
	ActorID    snowflake.ID   `json:"actor_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Sink receives events. Implementations must tolerate duplicate delivery.
type Sink interface {
	Notify(ctx context.Context, event Event) error
}

// Dispatcher fans events out to all sinks, swallowing sink errors.
type Dispatcher struct {
	log   *zap.Logger
	sinks []Sink
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	logger := log.Named("notification.dispatcher")
	return &Dispatcher{
		log:   logger,
		sinks: []Sink{&zapSink{log: logger}},
	}
}

// RegisterSink adds a sink; used by deployments wiring mail or chat hooks.
func (d *Dispatcher) RegisterSink(sink Sink) {
	if sink != nil {
		d.sinks = append(d.sinks, sink)
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	for _, sink := range d.sinks {
		if err := sink.Notify(ctx, event); err != nil {
			d.log.Warn("notification sink failed",
				zap.String("event_type", event.Type),
				zap.String("quote_id", event.QuoteID.String()),
				zap.Error(err),
			)
		}
	}
}

type zapSink struct {
	log *zap.Logger
}

func (s *zapSink) Notify(_ context.Context, event Event) error {
	s.log.Info("quote event",
		zap.String("event_type", event.Type),
		zap.String("quote_id", event.QuoteID.String()),
		zap.String("actor_id", event.ActorID.String()),
	)
	return nil
}

var Module = fx.Module("notification",
	fx.Provide(NewDispatcher),
)
