package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/logging"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

// EventType represents the type of a domain event.
type EventType string

const (
	EventTypeOrderCompleted EventType = "order.completed"
	EventTypeReviewCreated  EventType = "review.created"
	EventTypeReviewUpdated  EventType = "review.updated"
	EventTypeReviewDeleted  EventType = "review.deleted"
)

// Event is the envelope written to Kafka. AggregateID is also the message
// key, so events about one order or one service keep their order.
type Event struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	UserID      string          `json:"user_id"`
	Data        json.RawMessage `json:"data"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ReviewEventData is the payload of review.* events.
type ReviewEventData struct {
	ReviewID  uuid.UUID `json:"review_id"`
	ServiceID uuid.UUID `json:"service_id"`
	Rating    int       `json:"rating"`
}

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes marketplace events to Kafka.
type KafkaPublisher struct {
	writer       messageWriter
	ordersTopic  string
	reviewsTopic string
	logger       *logrus.Entry
}

// NewKafkaPublisher creates a publisher writing to the orders and reviews topics.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return newKafkaPublisher(writer, cfg)
}

func newKafkaPublisher(writer messageWriter, cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer:       writer,
		ordersTopic:  cfg.OrdersTopic,
		reviewsTopic: cfg.ReviewsTopic,
		logger:       logging.New("event-publisher"),
	}
}

// PublishOrderCompleted announces an order produced by checkout.
func (p *KafkaPublisher) PublishOrderCompleted(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	event := newEvent(EventTypeOrderCompleted, order.ID.String(), order.UserID, data)
	return p.publish(ctx, p.ordersTopic, event)
}

// PublishReviewCreated is also the rating transport when the catalog
// consumes the reviews topic.
func (p *KafkaPublisher) PublishReviewCreated(ctx context.Context, review *models.Review) error {
	return p.publishReview(ctx, EventTypeReviewCreated, review)
}

func (p *KafkaPublisher) PublishReviewUpdated(ctx context.Context, review *models.Review) error {
	return p.publishReview(ctx, EventTypeReviewUpdated, review)
}

func (p *KafkaPublisher) PublishReviewDeleted(ctx context.Context, review *models.Review) error {
	return p.publishReview(ctx, EventTypeReviewDeleted, review)
}

// NotifyRating lets the publisher serve as the review service's rating notifier.
func (p *KafkaPublisher) NotifyRating(ctx context.Context, review *models.Review) error {
	return p.PublishReviewCreated(ctx, review)
}

func (p *KafkaPublisher) publishReview(ctx context.Context, eventType EventType, review *models.Review) error {
	data, err := json.Marshal(ReviewEventData{
		ReviewID:  review.ID,
		ServiceID: review.ServiceID,
		Rating:    review.Rating,
	})
	if err != nil {
		return err
	}

	event := newEvent(eventType, review.ServiceID.String(), review.UserID, data)
	return p.publish(ctx, p.reviewsTopic, event)
}

func newEvent(eventType EventType, aggregateID, userID string, data []byte) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		UserID:      userID,
		Data:        data,
		Timestamp:   time.Now().UTC(),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, topic string, event *Event) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.AggregateID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), metrics.ResultFailure).Inc()
		p.logger.WithFields(logging.Fields{
			"event_id":     event.ID,
			"event_type":   event.Type,
			"aggregate_id": event.AggregateID,
			"error":        err.Error(),
		}).Error("Failed to publish event")
		return err
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), metrics.ResultSuccess).Inc()
	p.logger.WithFields(logging.Fields{
		"event_id":     event.ID,
		"event_type":   event.Type,
		"aggregate_id": event.AggregateID,
	}).Info("Event published")

	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}
