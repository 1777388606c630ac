package kafka

import (
	"context"
	"log/slog"

	"school-directory/internal/events"

	"github.com/IBM/sarama"
)

// Producer publishes school events to one topic, partitioned by message key.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewProducer(brokers []string, topic string, logger *slog.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.ClientID = "school-directory"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Idempotent = true
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	// Idempotent producers need a single in-flight request per connection.
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	logger.Info("kafka producer initialized", "brokers", brokers, "topic", topic)
	return NewProducerWithClient(producer, topic, logger), nil
}

// NewProducerWithClient wraps an existing sync producer (useful for testing)
func NewProducerWithClient(producer sarama.SyncProducer, topic string, logger *slog.Logger) *Producer {
	return &Producer{producer: producer, topic: topic, logger: logger}
}

func (p *Producer) SendMessage(ctx context.Context, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := events.Encode(value)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(encoded.Payload),
	}
	if encoded.Key != "" {
		msg.Key = sarama.StringEncoder(encoded.Key)
	}
	if encoded.Type != "" {
		msg.Headers = []sarama.RecordHeader{
			{Key: []byte(events.HeaderEventType), Value: []byte(encoded.Type)},
		}
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event", "topic", p.topic, "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "event published",
		"topic", p.topic,
		"type", encoded.Type,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
