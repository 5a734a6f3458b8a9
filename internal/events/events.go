// Package events carries change notifications from the specs server to NATS
// and, through the server's SSE hub, to HTTP clients. Payloads are JSON.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/specs/internal/model"
)

// Every topic lives under Prefix so "specs.>" matches all of them.
const Prefix = "specs."

const (
	TopicSpecificationCreated = Prefix + "specification.created"
	TopicSpecificationUpdated = Prefix + "specification.updated"
	TopicSpecificationDeleted = Prefix + "specification.deleted"

	TopicValuesApplied = Prefix + "values.applied"

	TopicRecordUpdated = Prefix + "record.updated"
	TopicRecordDeleted = Prefix + "record.deleted"
	TopicTypeUpdated   = Prefix + "type.updated"
)

type SpecificationCreated struct {
	Specification *model.Specification `json:"specification"`
}

type SpecificationUpdated struct {
	Specification *model.Specification `json:"specification"`
}

type SpecificationDeleted struct {
	SpecificationID string `json:"specification_id"`
}

// ValuesApplied is emitted after a successful apply or generate. References
// lists every record whose values were written.
type ValuesApplied struct {
	SpecificationID string      `json:"specification_id"`
	ReferenceType   string      `json:"reference_type"`
	References      []string    `json:"references"`
	Written         int         `json:"written"`
	Rows            []model.Row `json:"rows,omitempty"`
}

type RecordUpdated struct {
	Record *model.Record `json:"record"`
}

type RecordDeleted struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type TypeUpdated struct {
	RecordType *model.RecordType `json:"record_type"`
}

// Message is one event as received from the bus.
type Message struct {
	Topic string
	Data  json.RawMessage
}

// Encode returns the wire form of an event.
func Encode(event any) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	return data, nil
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber receives events.
type Subscriber interface {
	// Subscribe delivers messages matching topic on the returned channel
	// until cancel is called, which also closes the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// NoopPublisher discards every event. The server uses it when no NATS URL
// is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (NoopPublisher) Close() error { return nil }
