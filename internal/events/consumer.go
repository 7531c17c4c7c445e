package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
)

// RatingApplier folds one rating into a catalog item's aggregate.
type RatingApplier interface {
	ApplyRating(ctx context.Context, serviceID uuid.UUID, rating int) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// RatingConsumer applies review.created events from the reviews topic to the
// catalog. Other event types on the topic are ignored.
type RatingConsumer struct {
	reader  messageReader
	applier RatingApplier
	logger  *logrus.Entry
	stopCh  chan struct{}
}

// NewRatingConsumer creates a consumer in the configured consumer group.
func NewRatingConsumer(cfg config.KafkaConfig, applier RatingApplier) *RatingConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.ReviewsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return newRatingConsumer(reader, applier)
}

func newRatingConsumer(reader messageReader, applier RatingApplier) *RatingConsumer {
	return &RatingConsumer{
		reader:  reader,
		applier: applier,
		logger:  logging.New("rating-consumer"),
		stopCh:  make(chan struct{}),
	}
}

// Start consumes until ctx is cancelled or Stop is called.
func (c *RatingConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting rating consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Rating consumer stopped")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				select {
				case <-c.stopCh:
					return nil
				default:
				}
				c.logger.WithField("error", err.Error()).Error("Failed to read message")
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer.
func (c *RatingConsumer) Stop() {
	close(c.stopCh)
	c.reader.Close()
}

func (c *RatingConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.WithFields(logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	}).Debug("Received message")

	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.WithField("error", err.Error()).Error("Failed to unmarshal event")
		return
	}

	if event.Type != EventTypeReviewCreated {
		c.logger.WithField("type", event.Type).Debug("Ignoring event type")
		return
	}

	var data ReviewEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		c.logger.WithFields(logging.Fields{
			"event_id": event.ID,
			"error":    err.Error(),
		}).Error("Failed to unmarshal review event")
		return
	}

	if err := c.applier.ApplyRating(ctx, data.ServiceID, data.Rating); err != nil {
		fields := logging.Fields{
			"event_id":   event.ID,
			"service_id": data.ServiceID,
			"error":      err.Error(),
		}
		if errors.Is(err, errors.ErrNotFound) {
			c.logger.WithFields(fields).Warn("Rated service no longer exists")
			return
		}
		c.logger.WithFields(fields).Error("Failed to apply rating")
		return
	}

	c.logger.WithFields(logging.Fields{
		"event_id":   event.ID,
		"service_id": data.ServiceID,
		"rating":     data.Rating,
	}).Info("Rating applied from event")
}
