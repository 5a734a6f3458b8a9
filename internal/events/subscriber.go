package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscriptionBuffer bounds how far a slow reader may fall behind before
// messages are dropped.
const subscriptionBuffer = 64

// NATSSubscriber receives events from NATS subjects.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects to url and keeps reconnecting once a second
// after a disconnect. Extra options such as disconnect and reconnect
// handlers are appended to those defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.Name("specs-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe accepts NATS wildcards, e.g. "specs.>" or "specs.values.*".
// The subscription is registered on the server before Subscribe returns.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	sub := &subscription{ch: make(chan Message, subscriptionBuffer)}

	ns, err := s.conn.Subscribe(topic, sub.deliver)
	if err != nil {
		close(sub.ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	if err := s.conn.Flush(); err != nil {
		_ = ns.Unsubscribe()
		close(sub.ch)
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}
	sub.nats = ns
	return sub.ch, sub.cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

// subscription forwards NATS messages to ch until cancelled. deliver never
// blocks the NATS client: messages arriving while ch is full are dropped.
type subscription struct {
	ch   chan Message
	nats *nats.Subscription

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *subscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- Message{Topic: msg.Subject, Data: msg.Data}:
	default:
	}
}

// cancel is safe to call more than once and concurrently with deliver.
func (s *subscription) cancel() {
	s.once.Do(func() {
		_ = s.nats.Unsubscribe()
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}
