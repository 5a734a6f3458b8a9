package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes JSON events on NATS subjects named by topic.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to url. The connection is named "specs-server"
// and reconnects indefinitely; opts are applied after those defaults.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	defaults := []nats.Option{
		nats.Name("specs-server"),
		nats.MaxReconnects(-1),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish sends event on topic. It fails without sending when ctx is
// already done.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(event)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(topic)
	msg.Header.Set("Content-Type", "application/json")
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
