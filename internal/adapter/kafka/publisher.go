// Package kafka publishes alert-set changes so downstream consumers see
// the same last-known-good view the map renders.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/radar-overlay/internal/domain"
)

// Publisher produces one message per alert whenever the alert cache is
// replaced.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the alerts topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishAlerts serializes and publishes the replaced alert set in a
// single WriteMessages call for efficiency.
func (p *Publisher) PublishAlerts(ctx context.Context, alerts []domain.Alert, fetchedAt time.Time) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeToMessage(alerts[i], fetchedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// alertRecord is the wire form of one alert.
type alertRecord struct {
	ID          string            `json:"id"`
	Severity    string            `json:"severity"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Urgency     string            `json:"urgency,omitempty"`
	Expires     *time.Time        `json:"expires,omitempty"`
	Geometry    *geojson.Geometry `json:"geometry,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// serializeToMessage marshals an Alert into a Kafka message keyed by
// alert ID so replays of the same alert land in the same partition.
func serializeToMessage(a domain.Alert, fetchedAt time.Time) (kafkago.Message, error) {
	rec := alertRecord{
		ID:          a.ID,
		Severity:    a.Severity.String(),
		Title:       a.Title,
		Description: a.Description,
		Urgency:     a.Urgency,
		FetchedAt:   fetchedAt,
	}
	if !a.Expires.IsZero() {
		exp := a.Expires
		rec.Expires = &exp
	}
	if a.HasGeometry() {
		rec.Geometry = geojson.NewGeometry(a.Geometry)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(a.Severity.String())},
			{Key: "fetched_at", Value: []byte(fetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
