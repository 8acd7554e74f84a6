package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/service"
)

var _ service.InvoiceEventPublisher = (*KafkaPublisher)(nil)

// EventType represents the type of invoice event.
type EventType string

const (
	EventTypeInvoiceCreated       EventType = "invoice.created"
	EventTypeInvoiceStatusChanged EventType = "invoice.status_changed"
	EventTypeInvoiceCancelled     EventType = "invoice.cancelled"
)

// InvoiceEvent is the envelope written to the invoices topic.
type InvoiceEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	InvoiceID     string            `json:"invoice_id"`
	CustomerID    string            `json:"customer_id"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes invoice events to Kafka.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logging.LoggerV2
	now    func() time.Time
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.LoggerV2) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.InvoicesTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return newKafkaPublisher(writer, cfg.InvoicesTopic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger *logging.LoggerV2) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger,
		now:    time.Now,
	}
}

// PublishInvoiceCreated publishes an invoice created event.
func (p *KafkaPublisher) PublishInvoiceCreated(ctx context.Context, invoice *models.Invoice) error {
	p.logger.Debug("Publishing invoice created event", logging.Fields{
		"invoice_id": invoice.ID,
	})

	data, err := json.Marshal(invoice)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeInvoiceCreated, invoice, data)
	event.Metadata["number"] = invoice.Number
	if invoice.OrderID != "" {
		event.Metadata["order_id"] = invoice.OrderID
	}
	return p.publish(ctx, event)
}

// PublishInvoiceStatusChanged publishes an invoice status change event.
func (p *KafkaPublisher) PublishInvoiceStatusChanged(ctx context.Context, invoice *models.Invoice, previous models.InvoiceStatus) error {
	p.logger.Debug("Publishing invoice status changed event", logging.Fields{
		"invoice_id":      invoice.ID,
		"previous_status": previous,
		"new_status":      invoice.Status,
	})

	payload := struct {
		Invoice        *models.Invoice      `json:"invoice"`
		PreviousStatus models.InvoiceStatus `json:"previous_status"`
		NewStatus      models.InvoiceStatus `json:"new_status"`
	}{
		Invoice:        invoice,
		PreviousStatus: previous,
		NewStatus:      invoice.Status,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeInvoiceStatusChanged, invoice, data)
	return p.publish(ctx, event)
}

// PublishInvoiceCancelled publishes an invoice cancellation event.
func (p *KafkaPublisher) PublishInvoiceCancelled(ctx context.Context, invoice *models.Invoice, reason string) error {
	p.logger.Debug("Publishing invoice cancelled event", logging.Fields{
		"invoice_id": invoice.ID,
		"reason":     reason,
	})

	payload := struct {
		Invoice *models.Invoice `json:"invoice"`
		Reason  string          `json:"reason"`
	}{
		Invoice: invoice,
		Reason:  reason,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeInvoiceCancelled, invoice, data)
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) createEvent(ctx context.Context, eventType EventType, invoice *models.Invoice, data []byte) *InvoiceEvent {
	return &InvoiceEvent{
		ID:            "evt_" + uuid.NewString(),
		Type:          eventType,
		InvoiceID:     invoice.ID,
		CustomerID:    invoice.CustomerID,
		Data:          data,
		Metadata:      make(map[string]string),
		Timestamp:     p.now().UTC(),
		CorrelationID: middleware.RequestIDFromContext(ctx),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, event *InvoiceEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.InvoiceID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"invoice_id": event.InvoiceID,
			"error":      err.Error(),
		})
		return err
	}

	p.logger.Info("Event published", logging.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"invoice_id": event.InvoiceID,
		"topic":      p.topic,
	})

	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

// NoopPublisher drops every event. It is wired when invoice events are disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishInvoiceCreated(context.Context, *models.Invoice) error { return nil }

func (NoopPublisher) PublishInvoiceStatusChanged(context.Context, *models.Invoice, models.InvoiceStatus) error {
	return nil
}

func (NoopPublisher) PublishInvoiceCancelled(context.Context, *models.Invoice, string) error {
	return nil
}
