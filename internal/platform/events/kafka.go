package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const publishTimeout = 3 * time.Second

// KafkaPublisher writes events to a single topic, keyed by entity.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
	failed prometheus.Counter
}

func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger, reg prometheus.Registerer) *KafkaPublisher {
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radar_events_publish_failures_total",
		Help: "Domain events that could not be written to Kafka",
	})
	if reg != nil {
		reg.MustRegister(failed)
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: publishTimeout,
		},
		logger: logger,
		failed: failed,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) {
	msg, err := encode(e)
	if err != nil {
		p.fail(err, e)
		return
	}

	// The request context may be cancelled as soon as the response is written.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.fail(err, e)
		return
	}
	p.logger.Debug().
		Str("event_id", e.ID).
		Str("event_type", e.Type).
		Str("topic", p.writer.Topic).
		Msg("event published")
}

func (p *KafkaPublisher) fail(err error, e Event) {
	p.failed.Inc()
	p.logger.Error().Err(err).
		Str("event_id", e.ID).
		Str("event_type", e.Type).
		Msg("failed to publish event")
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
			{Key: "event-id", Value: []byte(e.ID)},
		},
	}, nil
}
