package events

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func newSubscriber(t *testing.T, url string, opts ...nats.Option) *NATSSubscriber {
	t.Helper()
	sub, err := NewNATSSubscriber(url, opts...)
	if err != nil {
		t.Fatalf("NewNATSSubscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return sub
}

// drain reads ch until it is closed.
func drain(t *testing.T, ch <-chan Message) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("channel not closed")
		}
	}
}

func TestNATSSubscriber_RoundTrip(t *testing.T) {
	url := startTestNATS(t)
	pub := newPublisher(t, url)
	sub := newSubscriber(t, url)

	tests := []struct {
		pattern string
		topic   string
		event   any
		want    string
	}{
		{"specs.>", TopicSpecificationDeleted, SpecificationDeleted{SpecificationID: "Items"}, `{"specification_id":"Items"}`},
		{"specs.record.*", TopicRecordDeleted, RecordDeleted{Type: "Item", ID: "pie"}, `{"type":"Item","id":"pie"}`},
		{TopicValuesApplied, TopicValuesApplied, ValuesApplied{SpecificationID: "Items", References: []string{"pie"}, Written: 1},
			`{"specification_id":"Items","reference_type":"","references":["pie"],"written":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			ch, cancel, err := sub.Subscribe(tt.pattern)
			if err != nil {
				t.Fatalf("Subscribe: %v", err)
			}
			defer cancel()

			if err := pub.Publish(context.Background(), tt.topic, tt.event); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			pub.Flush()

			msg := receive(t, ch)
			if msg.Topic != tt.topic {
				t.Errorf("topic = %q, want %q", msg.Topic, tt.topic)
			}
			if string(msg.Data) != tt.want {
				t.Errorf("data = %s, want %s", msg.Data, tt.want)
			}
		})
	}
}

func TestNATSSubscriber_IgnoresOtherTopics(t *testing.T) {
	url := startTestNATS(t)
	pub := newPublisher(t, url)
	sub := newSubscriber(t, url)

	ch, cancel, err := sub.Subscribe("specs.values.*")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	_ = pub.Publish(ctx, TopicSpecificationCreated, SpecificationCreated{})
	_ = pub.Publish(ctx, TopicValuesApplied, ValuesApplied{SpecificationID: "Items"})
	pub.Flush()

	if msg := receive(t, ch); msg.Topic != TopicValuesApplied {
		t.Fatalf("first message topic = %q, want %q", msg.Topic, TopicValuesApplied)
	}
}

func TestNATSSubscriber_Cancel(t *testing.T) {
	sub := newSubscriber(t, startTestNATS(t))

	ch, cancel, err := sub.Subscribe("specs.>")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()
	cancel()
	drain(t, ch)
}

func TestNATSSubscriber_CancelDuringMessages(t *testing.T) {
	url := startTestNATS(t)
	pub := newPublisher(t, url)
	sub := newSubscriber(t, url)

	ch, cancel, err := sub.Subscribe("specs.>")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = pub.Publish(context.Background(), TopicRecordDeleted, RecordDeleted{Type: "Item", ID: "x"})
		}
		pub.Flush()
	}()

	cancel()
	<-done
	drain(t, ch)
}

func TestNATSSubscriber_AcceptsHandlers(t *testing.T) {
	sub := newSubscriber(t, startTestNATS(t),
		nats.DisconnectErrHandler(func(*nats.Conn, error) {}),
		nats.ReconnectHandler(func(*nats.Conn) {}),
	)
	if !sub.conn.IsConnected() {
		t.Fatal("expected subscriber to be connected")
	}
}
