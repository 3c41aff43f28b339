package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dejobratic/lantern/internal/orders/ports"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes order lifecycle events to <prefix>.<event type> topics, keyed by
// order id so every event of one order lands on the same partition.
type Publisher struct {
	writer messageWriter
	prefix string
}

func NewPublisher(brokers []string, topicPrefix string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher needs at least one broker")
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return newPublisher(writer, topicPrefix), nil
}

func newPublisher(writer messageWriter, topicPrefix string) *Publisher {
	return &Publisher{writer: writer, prefix: strings.TrimSuffix(topicPrefix, ".")}
}

// Topic returns the topic events of eventType are written to.
func (p *Publisher) Topic(eventType ports.EventType) string {
	if p.prefix == "" {
		return string(eventType)
	}
	return p.prefix + "." + string(eventType)
}

func (p *Publisher) Publish(ctx context.Context, event ports.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	msg := kafkago.Message{
		Topic:   p.Topic(event.Type),
		Key:     []byte(event.OrderID),
		Value:   payload,
		Time:    event.OccurredAt,
		Headers: injectTraceHeaders(ctx, []kafkago.Header{{Key: "event_type", Value: []byte(event.Type)}}),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func injectTraceHeaders(ctx context.Context, headers []kafkago.Header) []kafkago.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
