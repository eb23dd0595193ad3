package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/internal/config"
	"github.com/temcen/ekskulrec/internal/validation"
)

const (
	RegenerationTopic    = "recommendation-regeneration"
	RegenerationDLQTopic = "recommendation-regeneration-dlq"
	GeneratedTopic       = "recommendations-generated"
	ConsumerGroup        = "recommendation-generators"

	maxRetries = 3
)

// RegenerationRequest asks a worker to recompute recommendations for every user.
type RegenerationRequest struct {
	JobID       uuid.UUID `json:"job_id"`
	RequestedAt time.Time `json:"requested_at"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RetryCount  int       `json:"retry_count"`
}

// RecommendationsGenerated is emitted after a fresh run completes.
type RecommendationsGenerated struct {
	RunID           uuid.UUID  `json:"run_id"`
	JobID           *uuid.UUID `json:"job_id,omitempty"`
	GeneratedAt     time.Time  `json:"generated_at"`
	Users           int        `json:"users"`
	Recommendations int        `json:"recommendations"`
	DurationMs      int64      `json:"duration_ms"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Stats() kafka.ReaderStats
	Close() error
}

// ConsumerStats are the regeneration consumer counters exported as metrics.
// Messages and Errors are deltas since the previous snapshot.
type ConsumerStats struct {
	Lag      int64
	Offset   int64
	Messages int64
	Errors   int64
}

type MessageBus struct {
	requests  messageWriter
	events    messageWriter
	dlqWriter messageWriter
	reader    messageReader

	validator *validation.SchemaValidator
	logger    *logrus.Logger

	regenerationTopic string
	baseDelay         time.Duration
}

func NewMessageBus(cfg *config.Config, validator *validation.SchemaValidator, logger *logrus.Logger) (*MessageBus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	topics := cfg.Kafka.Topics
	regenerationTopic := orDefault(topics.Regeneration, RegenerationTopic)
	group := orDefault(cfg.Kafka.ConsumerGroup, ConsumerGroup)

	requests := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        regenerationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}

	events := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        orDefault(topics.Generated, GeneratedTopic),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          regenerationTopic,
		GroupID:        group,
		MinBytes:       1,
		MaxBytes:       1e6, // 1MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        orDefault(topics.RegenerationDLQ, RegenerationDLQTopic),
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &MessageBus{
		requests:          requests,
		events:            events,
		dlqWriter:         dlqWriter,
		reader:            reader,
		validator:         validator,
		logger:            logger,
		regenerationTopic: regenerationTopic,
		baseDelay:         time.Second,
	}, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// PublishRegeneration enqueues a regeneration request.
func (mb *MessageBus) PublishRegeneration(ctx context.Context, req RegenerationRequest) error {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}

	messageBytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal regeneration request: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(req.JobID.String()),
		Value: messageBytes,
		Headers: []kafka.Header{
			{Key: "job_id", Value: []byte(req.JobID.String())},
			{Key: "timestamp", Value: []byte(req.RequestedAt.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mb.requests.WriteMessages(ctx, message); err != nil {
		mb.logger.WithError(err).WithField("job_id", req.JobID).Error("Failed to publish regeneration request")
		return fmt.Errorf("failed to write regeneration request: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"job_id": req.JobID,
		"topic":  mb.regenerationTopic,
	}).Info("Regeneration request published")

	return nil
}

// PublishGenerated announces a completed run.
func (mb *MessageBus) PublishGenerated(ctx context.Context, event RecommendationsGenerated) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal generated event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = mb.events.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID.String()),
		Value: eventBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to write generated event: %w", err)
	}
	return nil
}

// ConsumeRegenerations blocks, handing each valid request to handler until ctx
// is cancelled. Payloads that fail schema validation go straight to the DLQ;
// handler failures are retried with exponential backoff first.
func (mb *MessageBus) ConsumeRegenerations(ctx context.Context, handler func(context.Context, RegenerationRequest) error) error {
	for {
		message, err := mb.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mb.logger.WithError(err).Error("Failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(mb.baseDelay):
			}
			continue
		}

		if result := mb.validator.Validate(validation.RegenerationRequestSchema, message.Value); !result.Valid {
			invalidErr := fmt.Errorf("invalid regeneration request: %w", result.Err())
			mb.logger.WithError(invalidErr).Warn("Rejecting regeneration request")
			if dlqErr := mb.sendToDLQ(ctx, message.Key, message.Value, invalidErr); dlqErr != nil {
				mb.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
			continue
		}

		var req RegenerationRequest
		if err := json.Unmarshal(message.Value, &req); err != nil {
			if dlqErr := mb.sendToDLQ(ctx, message.Key, message.Value, err); dlqErr != nil {
				mb.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
			continue
		}

		if err := mb.processWithRetry(ctx, &req, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mb.logger.WithError(err).WithField("job_id", req.JobID).Error("Failed to process regeneration request after retries")

			payload, _ := json.Marshal(req)
			if dlqErr := mb.sendToDLQ(ctx, message.Key, payload, err); dlqErr != nil {
				mb.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
		}
	}
}

func (mb *MessageBus) processWithRetry(ctx context.Context, req *RegenerationRequest, handler func(context.Context, RegenerationRequest) error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := mb.baseDelay * time.Duration(1<<uint(attempt-1))
			mb.logger.WithFields(logrus.Fields{
				"job_id":  req.JobID,
				"attempt": attempt,
				"delay":   delay,
			}).Info("Retrying regeneration request")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req.RetryCount = attempt
		if err := handler(ctx, *req); err != nil {
			mb.logger.WithError(err).WithFields(logrus.Fields{
				"job_id":  req.JobID,
				"attempt": attempt,
			}).Warn("Regeneration request failed")

			if attempt == maxRetries {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
			continue
		}

		mb.logger.WithFields(logrus.Fields{
			"job_id":  req.JobID,
			"attempt": attempt,
		}).Info("Regeneration request processed")
		return nil
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (mb *MessageBus) sendToDLQ(ctx context.Context, key, payload []byte, originalError error) error {
	dlqMessage := map[string]interface{}{
		"original_message": json.RawMessage(payloadOrNull(payload)),
		"error":            originalError.Error(),
		"dlq_timestamp":    time.Now().UTC(),
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	message := kafka.Message{
		Key:   key,
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "original_topic", Value: []byte(mb.regenerationTopic)},
			{Key: "error", Value: []byte(originalError.Error())},
		},
	}

	if err := mb.dlqWriter.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	mb.logger.WithField("error", originalError.Error()).Warn("Message sent to DLQ")
	return nil
}

// payloadOrNull keeps the DLQ envelope valid JSON even when the original bytes are not.
func payloadOrNull(payload []byte) []byte {
	if json.Valid(payload) {
		return payload
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}

func (mb *MessageBus) Close() error {
	var errs []error

	if err := mb.requests.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close request writer: %w", err))
	}
	if err := mb.events.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close event writer: %w", err))
	}
	if err := mb.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}
	if err := mb.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing message bus: %w", errors.Join(errs...))
	}
	return nil
}

// Stats snapshots the consumer counters. kafka-go resets its counters on
// every read, so successive snapshots never double count.
func (mb *MessageBus) Stats() ConsumerStats {
	stats := mb.reader.Stats()
	return ConsumerStats{
		Lag:      stats.Lag,
		Offset:   stats.Offset,
		Messages: stats.Messages,
		Errors:   stats.Errors,
	}
}
