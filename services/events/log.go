package eventsvc

import (
	"context"

	"github.com/edutrack/backend/core"
)

// LogPublisher writes events to the logger at debug level and keeps nothing.
// It stands in for the broker when none is configured.
type LogPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = LogPublisher{}

func NewLogPublisher(logger core.Logger) LogPublisher {
	return LogPublisher{logger: logger}
}

func (p LogPublisher) Publish(_ context.Context, events ...core.Event) error {
	for _, evt := range events {
		p.logger.Debug("event "+evt.Name, map[string]interface{}{"payload": evt.Payload, "occurred_at": evt.OccurredAt})
	}
	return nil
}
