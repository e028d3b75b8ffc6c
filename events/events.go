// Package events publishes domain events about gold assets.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	TypeRegistered  = "gold.registered"
	TypeTransferred = "gold.transferred"
)

// Event is a change of an asset.
type Event struct {
	Type          string    `json:"type"`
	AssetID       string    `json:"assetId"`
	Owner         string    `json:"owner"`
	PreviousOwner string    `json:"previousOwner,omitempty"`
	Date          string    `json:"date,omitempty"` // business date, certification or transfer
	At            time.Time `json:"at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Log writes events to a logger.
type Log struct{ Logger *slog.Logger }

func (l Log) Publish(ctx context.Context, e Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event", slog.String("type", e.Type), slog.String("asset", e.AssetID),
		slog.String("owner", e.Owner), slog.String("previous_owner", e.PreviousOwner), slog.String("date", e.Date))
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a Kafka publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Kafka publishes events as JSON messages keyed by asset id, so the events of
// one asset keep their order within a partition.
type Kafka struct {
	writer messageWriter
	log    *slog.Logger
}

// NewKafka returns a publisher writing to the configured topic.
func NewKafka(cfg KafkaConfig, log *slog.Logger) (*Kafka, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafka(w, log), nil
}

func newKafka(w messageWriter, log *slog.Logger) *Kafka {
	if log == nil {
		log = slog.Default()
	}
	return &Kafka{writer: w, log: log.With(slog.String("component", "events"))}
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cannot encode event %s: %w", e.Type, err)
	}
	msg := kafka.Message{Key: []byte(e.AssetID), Value: value, Time: e.At}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.Error("publish failed", slog.String("type", e.Type), slog.String("asset", e.AssetID), slog.Any("err", err))
		return fmt.Errorf("cannot publish event %s: %w", e.Type, err)
	}
	k.log.Debug("published", slog.String("type", e.Type), slog.String("asset", e.AssetID))
	return nil
}

// Close flushes pending messages and releases the connection.
func (k *Kafka) Close() error { return k.writer.Close() }
