package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/aed-placement/internal/config"
	"github.com/couchcryptid/aed-placement/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes recommendations to a Kafka topic, one message each.
// It implements pipeline.ResultSink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// LoadResult publishes every recommendation of a run in a single
// WriteMessages call.
func (w *Writer) LoadResult(ctx context.Context, result *domain.Result) error {
	if len(result.Recommendations) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(result.Recommendations))
	for i, rec := range result.Recommendations {
		msg, err := serializeToMessage(result, rec)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write recommendations: %w", err)
	}
	w.logger.Info("recommendations published", "run_id", result.RunID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// recommendationMessage is the wire form of one recommendation.
type recommendationMessage struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	domain.Recommendation
}

func serializeToMessage(result *domain.Result, rec domain.Recommendation) (kafkago.Message, error) {
	data, err := json.Marshal(recommendationMessage{
		RunID:          result.RunID,
		GeneratedAt:    result.GeneratedAt,
		Recommendation: rec,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize recommendation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(result.RunID)},
			{Key: "rank", Value: []byte(strconv.Itoa(rec.Rank))},
			{Key: "generated_at", Value: []byte(result.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
