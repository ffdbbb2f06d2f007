package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/marketpulse/marketpulse/internal/models"
)

// Producer publishes anomaly detection events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishAnomalies publishes one event for a symbol's persisted detection
// batch, keyed by symbol
func (p *Producer) PublishAnomalies(ctx context.Context, symbol string, anomalies []models.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	event := models.AnomalyEvent{
		EventType: "ANOMALY_DETECTED",
		Symbol:    symbol,
		Count:     len(anomalies),
		Anomalies: anomalies,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(symbol),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
