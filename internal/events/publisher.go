// Package events publishes committed audit entries to an external broker.
// Publication is best effort: the audit row in the database stays the record.
package events

import (
	"context"
	"fmt"

	"github.com/adamscao/protocolreg/internal/config"
	"github.com/adamscao/protocolreg/internal/models"
)

// Publisher delivers audit entries after their transaction has committed
type Publisher interface {
	Publish(ctx context.Context, entry *models.LogEntry) error
	Close() error
}

// Nop discards every entry
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, *models.LogEntry) error { return nil }

// Close implements Publisher
func (Nop) Close() error { return nil }

// New builds the publisher selected by cfg.Driver
func New(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "amqp":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// routingKey is "<table>.<action>", e.g. "protocolos.CREATE"
func routingKey(entry *models.LogEntry) string {
	return entry.AffectedTable + "." + entry.Action
}
