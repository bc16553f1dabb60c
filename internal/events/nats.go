package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/timmy/vehicle-catalog/internal/config"
	"github.com/timmy/vehicle-catalog/internal/logger"
)

const (
	DefaultNATSStream        = "VEHICLE_CATALOG"
	DefaultNATSSubjectPrefix = "catalog"
)

// JetStreamPublisher is the subset of nats.JetStreamContext the transport uses.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

var _ JetStreamPublisher = (nats.JetStreamContext)(nil)

// NATSTransport publishes events to a JetStream stream. Subjects are
// "<prefix>.<event type>".
type NATSTransport struct {
	conn   *nats.Conn
	js     JetStreamPublisher
	stream string
	prefix string
}

// DialNATS connects to the server in cfg and ensures the stream exists.
func DialNATS(ctx context.Context, cfg config.NATSConfig) (*NATSTransport, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("vehicle-catalog"),
		nats.Timeout(10*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	t := NewNATSTransport(js, cfg.Stream, cfg.SubjectPrefix)
	t.conn = nc
	if err := t.EnsureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return t, nil
}

// NewNATSTransport creates a transport over an existing JetStream context.
func NewNATSTransport(js JetStreamPublisher, stream, prefix string) *NATSTransport {
	if stream == "" {
		stream = DefaultNATSStream
	}
	if prefix == "" {
		prefix = DefaultNATSSubjectPrefix
	}
	return &NATSTransport{js: js, stream: stream, prefix: prefix}
}

// EnsureStream creates the stream when it does not exist yet.
func (t *NATSTransport) EnsureStream(ctx context.Context) error {
	if _, err := t.js.StreamInfo(t.stream); err == nil {
		return nil
	}

	logger.CtxInfo(ctx, "Stream %s not found, creating it for %s.>", t.stream, t.prefix)
	_, err := t.js.AddStream(&nats.StreamConfig{
		Name:     t.stream,
		Subjects: []string{t.prefix + ".>"},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("create nats stream %s: %w", t.stream, err)
	}
	return nil
}

// Subject returns the subject events of topic are published on.
func (t *NATSTransport) Subject(topic string) string {
	return t.prefix + "." + topic
}

func (t *NATSTransport) Name() string { return "nats" }

func (t *NATSTransport) Send(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := t.Subject(topic)
	if _, err := t.js.Publish(subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (t *NATSTransport) Close() error {
	if t.conn != nil {
		return t.conn.Drain()
	}
	return nil
}
