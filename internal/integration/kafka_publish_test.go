//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/rainfall-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/rainfall-etl/internal/adapter/hko"
	"github.com/couchcryptid/rainfall-etl/internal/adapter/kafka"
	"github.com/couchcryptid/rainfall-etl/internal/config"
	"github.com/couchcryptid/rainfall-etl/internal/domain"
	"github.com/couchcryptid/rainfall-etl/internal/observability"
	"github.com/couchcryptid/rainfall-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-rainfall-observations"

// publishedMessage holds a deserialized message read from the topic.
type publishedMessage struct {
	Key     string
	Value   map[string]any
	Headers map[string]string
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("rainfall-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic")
}

func readPublished(ctx context.Context, t *testing.T, reader *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var value map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &value), "unmarshal message")

	return publishedMessage{Key: string(msg.Key), Value: value, Headers: headers}
}

// TestPipelinePublishesSnapshot runs a full collection against a fake upstream
// and checks both the CSV snapshot and the published Kafka messages.
func TestPipelinePublishesSnapshot(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.May, 2, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("date") {
		case "20240501":
			_, _ = w.Write([]byte(`{"20240501": {"Sha Tin": 12.5, "Tai Po": 0}}`))
		case "20240502":
			_, _ = w.Write([]byte(`[{"date": "2024-05-02", "station": "Tai Po", "rain": "3.25"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}

	writer := kafka.NewWriter(cfg, logger, metrics)
	defer writer.Close()

	snapshotPath := filepath.Join(t.TempDir(), "rain.csv")
	client := hko.NewClient(5*time.Second, 64, logger, metrics)
	collector := pipeline.NewCollector(client, pipeline.CollectorConfig{
		Days:        2,
		ProbeStride: 1,
		QueryParams: []string{"date"},
		Location:    time.UTC,
	}, logger, metrics)

	p := pipeline.New(collector, nil,
		pipeline.Sources{Endpoints: []string{upstream.URL + "/rain.json"}},
		[]pipeline.Loader{csvstore.NewFileSink(snapshotPath, logger), writer},
		logger, metrics)

	snap, err := p.RunOnce(ctx)
	require.NoError(t, err)

	stored, err := csvstore.LoadFile(snapshotPath)
	require.NoError(t, err)
	assert.Equal(t, snap.Matrix.Stations(), stored.Stations())
	assert.Equal(t, []string{"Sha Tin", "Tai Po"}, stored.Stations())

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer reader.Close()

	first := readPublished(ctx, t, reader)
	assert.Equal(t, "Sha Tin|2024-05-01", first.Key)
	assert.Equal(t, "2024-05-01", first.Value["date"])
	assert.InDelta(t, 12.5, first.Value["value"], 1e-9)
	assert.Equal(t, snap.RunID, first.Headers["run_id"])
	assert.NotEmpty(t, first.Headers["collected_at"])

	second := readPublished(ctx, t, reader)
	assert.Equal(t, "Tai Po|2024-05-02", second.Key)
	assert.InDelta(t, 3.25, second.Value["value"], 1e-9)
}
