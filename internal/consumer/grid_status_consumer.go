package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqttcommon "voltonic-power/common/mqtt"
	"voltonic-power/internal/models"

	"go.uber.org/zap"
)

// Subscriber MQTT subscription surface (common/mqtt.Client)
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// GridStatusWriter persists grid status changes
type GridStatusWriter interface {
	InsertGridStatus(ctx context.Context, status *models.GridStatus) error
}

// GridStatusMessage payload on the grid status topic
type GridStatusMessage struct {
	GridAvailable *bool      `json:"grid_available"`
	Reason        string     `json:"reason,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

// GridStatusConsumer records grid outages and restorations reported over MQTT.
// The next tick reads the latest status from the database.
type GridStatusConsumer struct {
	subscriber Subscriber
	writer     GridStatusWriter
	topic      string
	logger     *zap.Logger
	now        func() time.Time
}

// NewGridStatusConsumer creates the consumer
func NewGridStatusConsumer(subscriber Subscriber, writer GridStatusWriter, topic string, logger *zap.Logger) *GridStatusConsumer {
	return &GridStatusConsumer{
		subscriber: subscriber,
		writer:     writer,
		topic:      topic,
		logger:     logger,
		now:        time.Now,
	}
}

// Start subscribes and blocks until ctx is cancelled
func (c *GridStatusConsumer) Start(ctx context.Context) error {
	handler := func(topic string, payload []byte) error {
		return c.handleMessage(ctx, topic, payload)
	}
	if err := c.subscriber.Subscribe(c.topic, 1, handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}

	c.logger.Info("Grid status consumer started",
		zap.String("topic", c.topic),
	)

	<-ctx.Done()

	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Warn("Failed to unsubscribe",
			zap.String("topic", c.topic),
			zap.Error(err),
		)
	}
	c.logger.Info("Grid status consumer stopped")
	return nil
}

func (c *GridStatusConsumer) handleMessage(ctx context.Context, topic string, payload []byte) error {
	var msg GridStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to parse grid status: %w", err)
	}
	if msg.GridAvailable == nil {
		return fmt.Errorf("invalid grid status: missing grid_available")
	}

	status := &models.GridStatus{
		GridAvailable: *msg.GridAvailable,
		Reason:        msg.Reason,
		Timestamp:     c.now(),
	}
	if msg.Timestamp != nil {
		status.Timestamp = *msg.Timestamp
	}

	if err := c.writer.InsertGridStatus(ctx, status); err != nil {
		return fmt.Errorf("failed to record grid status: %w", err)
	}

	c.logger.Info("Grid status recorded",
		zap.String("topic", topic),
		zap.Bool("grid_available", status.GridAvailable),
		zap.String("reason", status.Reason),
	)
	return nil
}
