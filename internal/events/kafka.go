package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/adamscao/protocolreg/internal/models"
)

// KafkaPublisher writes entries to a Kafka topic keyed by affected record
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a synchronous writer for topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Publish implements Publisher
func (p *KafkaPublisher) Publish(ctx context.Context, entry *models.LogEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(messageKey(entry)),
		Value: body,
		Time:  entry.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(routingKey(entry))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// Close implements Publisher
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// messageKey keeps every entry of one record on the same partition
func messageKey(entry *models.LogEntry) string {
	if entry.AffectedRecordID == nil {
		return entry.AffectedTable
	}
	return entry.AffectedTable + ":" + strconv.FormatInt(*entry.AffectedRecordID, 10)
}
