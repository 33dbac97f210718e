//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/paulmach/orb"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/radar-overlay/internal/adapter/kafka"
	"github.com/couchcryptid/radar-overlay/internal/domain"
)

const testAlertsTopic = "test-radar-alert-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("radar-overlay-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// publishedAlert mirrors the wire record for assertions.
type publishedAlert struct {
	ID          string          `json:"id"`
	Severity    string          `json:"severity"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Urgency     string          `json:"urgency"`
	Expires     *time.Time      `json:"expires"`
	Geometry    json.RawMessage `json:"geometry"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// TestPublishAlertsRoundTrip publishes a replaced alert set through the
// Publisher against real Kafka and verifies keys, headers, and payload.
func TestPublishAlertsRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAlertsTopic)

	fetchedAt := time.Date(2026, 4, 26, 15, 10, 0, 0, time.UTC)
	expires := time.Date(2026, 4, 26, 16, 0, 0, 0, time.UTC)
	alerts := []domain.Alert{
		{
			ID:          "urn:oid:2.49.0.1.840.0.1",
			Severity:    domain.SeverityExtreme,
			Title:       "Tornado Warning",
			Description: "A confirmed tornado is on the ground.",
			Urgency:     "Immediate",
			Expires:     expires,
			Geometry:    orb.Polygon{{{-98, 37}, {-97, 37}, {-97, 38}, {-98, 37}}},
		},
		{
			ID:       "urn:oid:2.49.0.1.840.0.2",
			Severity: domain.SeverityMinor,
			Title:    "Wind Advisory",
			Urgency:  "Expected",
		},
	}

	p := kafka.NewPublisher([]string{broker}, testAlertsTopic, discardLogger())
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, p.PublishAlerts(ctx, alerts, fetchedAt))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAlertsTopic,
		GroupID:     fmt.Sprintf("test-alerts-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := map[string]publishedAlert{}
	headers := map[string]map[string]string{}
	for len(received) < len(alerts) {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read published alert")

		var rec publishedAlert
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		require.Equal(t, rec.ID, string(msg.Key), "messages are keyed by alert ID")
		received[rec.ID] = rec

		hdrs := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			hdrs[h.Key] = string(h.Value)
		}
		headers[rec.ID] = hdrs
	}

	tornado := received["urn:oid:2.49.0.1.840.0.1"]
	assert.Equal(t, "extreme", tornado.Severity)
	assert.Equal(t, "Tornado Warning", tornado.Title)
	assert.Equal(t, "Immediate", tornado.Urgency)
	require.NotNil(t, tornado.Expires)
	assert.True(t, tornado.Expires.Equal(expires))
	assert.NotEmpty(t, tornado.Geometry, "polygon alerts carry GeoJSON geometry")
	assert.True(t, tornado.FetchedAt.Equal(fetchedAt))
	assert.Equal(t, "extreme", headers["urn:oid:2.49.0.1.840.0.1"]["severity"])
	assert.Equal(t, fetchedAt.Format(time.RFC3339), headers["urn:oid:2.49.0.1.840.0.1"]["fetched_at"])

	advisory := received["urn:oid:2.49.0.1.840.0.2"]
	assert.Equal(t, "minor", advisory.Severity)
	assert.Nil(t, advisory.Expires)
	assert.Empty(t, advisory.Geometry, "zone alerts omit geometry")
	assert.Equal(t, "minor", headers["urn:oid:2.49.0.1.840.0.2"]["severity"])
}
