package events

import (
	"context"
	"fmt"

	"github.com/timmy/vehicle-catalog/internal/config"
	"github.com/timmy/vehicle-catalog/internal/logger"
)

// LogTransport writes events to the structured log. Used when no bus is configured.
type LogTransport struct{}

func (LogTransport) Name() string { return "log" }

func (LogTransport) Send(ctx context.Context, topic string, payload []byte) error {
	logger.With(logger.Fields{logger.FieldEventType: topic}).
		WithField("payload", string(payload)).
		Info(ctx, "Event published")
	return nil
}

func (LogTransport) Close() error { return nil }

// NewTransport builds the transport selected by cfg.Driver.
func NewTransport(ctx context.Context, cfg config.EventsConfig) (Transport, error) {
	switch cfg.Driver {
	case "", "log":
		return LogTransport{}, nil
	case "valkey":
		client, err := NewValkeyClient(ctx, cfg.Valkey)
		if err != nil {
			return nil, err
		}
		return NewValkeyTransport(client, cfg.Valkey.Stream), nil
	case "nats":
		return DialNATS(ctx, cfg.NATS)
	default:
		return nil, fmt.Errorf("unsupported events driver: %s", cfg.Driver)
	}
}
