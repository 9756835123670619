package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

// LocationProducer publishes driver location updates for the consumer to
// fold into the geo index.
type LocationProducer struct {
	writer *kafka.Writer
}

func NewLocationProducer(brokers []string, topic string) *LocationProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &LocationProducer{writer: w}
}

func (k *LocationProducer) PublishLocation(d models.Driver) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(d)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(d.ID), Value: b})
}

func (k *LocationProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// EventProducer mirrors trip audit events to a topic for downstream
// consumers. Delivery is best effort; the durable trip_events table is the
// record of truth.
type EventProducer struct {
	writer *kafka.Writer
}

func NewEventProducer(brokers []string, topic string) *EventProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &EventProducer{writer: w}
}

func (k *EventProducer) PublishEvent(ctx context.Context, e *models.TripEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(e)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.TripID), Value: b})
}

func (k *EventProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
