package events

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/timmy/vehicle-catalog/internal/config"
)

// DefaultValkeyStream receives events when no stream is configured.
const DefaultValkeyStream = "vehicle-catalog:events"

// NewValkeyClient connects to valkey and verifies the connection.
func NewValkeyClient(ctx context.Context, cfg config.ValkeyConfig) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{cfg.Addr},
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}
	return client, nil
}

// ValkeyTransport appends events to a valkey stream. Each entry carries the
// event type and the JSON envelope.
type ValkeyTransport struct {
	client valkey.Client
	stream string
}

// NewValkeyTransport creates a transport writing to stream.
func NewValkeyTransport(client valkey.Client, stream string) *ValkeyTransport {
	if stream == "" {
		stream = DefaultValkeyStream
	}
	return &ValkeyTransport{client: client, stream: stream}
}

func (t *ValkeyTransport) Name() string { return "valkey" }

func (t *ValkeyTransport) Send(ctx context.Context, topic string, payload []byte) error {
	resp := t.client.Do(ctx, t.client.B().Xadd().
		Key(t.stream).Id("*").
		FieldValue().
		FieldValue("type", topic).
		FieldValue("data", string(payload)).
		Build())
	if err := resp.Error(); err != nil {
		return fmt.Errorf("xadd %s: %w", t.stream, err)
	}
	return nil
}

func (t *ValkeyTransport) Close() error {
	t.client.Close()
	return nil
}
