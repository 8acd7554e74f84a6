package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
)

// OrderEventType represents the type of order event read from the orders topic.
type OrderEventType string

const (
	OrderEventConfirmed     OrderEventType = "order.confirmed"
	OrderEventStatusChanged OrderEventType = "order.status_changed"

	orderStatusConfirmed = "confirmed"
)

// OrderEvent is the envelope the orders service writes.
type OrderEvent struct {
	ID            string          `json:"id"`
	Type          OrderEventType  `json:"type"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// orderStatusChange is the payload of an order.status_changed event.
type orderStatusChange struct {
	Order     *models.Order `json:"order"`
	NewStatus string        `json:"new_status"`
}

// InvoiceCreator turns a confirmed order into an invoice.
type InvoiceCreator interface {
	CreateInvoiceFromOrder(ctx context.Context, order *models.Order) (*models.Invoice, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer invoices orders as they are confirmed.
type KafkaConsumer struct {
	reader   messageReader
	invoices InvoiceCreator
	logger   *logging.LoggerV2
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKafkaConsumer creates a new Kafka-based order event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, invoices InvoiceCreator, logger *logging.LoggerV2) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.OrdersTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return newKafkaConsumer(reader, invoices, logger)
}

func newKafkaConsumer(reader messageReader, invoices InvoiceCreator, logger *logging.LoggerV2) *KafkaConsumer {
	return &KafkaConsumer{
		reader:   reader,
		invoices: invoices,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start consumes events until ctx is cancelled or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				select {
				case <-c.stopCh:
					c.logger.Info("Kafka consumer stopped")
					return nil
				default:
				}
				c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer. It is safe to call more than once.
func (c *KafkaConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		if err := c.reader.Close(); err != nil {
			c.logger.Error("Failed to close Kafka reader", logging.Fields{"error": err.Error()})
		}
	})
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.RecordEventConsumed("unknown", "malformed")
		c.logger.Error("Failed to unmarshal event", logging.Fields{"error": err.Error()})
		return
	}

	if event.CorrelationID != "" {
		ctx = middleware.WithRequestID(ctx, event.CorrelationID)
	}

	order, ok := c.confirmedOrder(&event)
	if !ok {
		metrics.RecordEventConsumed(string(event.Type), "ignored")
		c.logger.Debug("Ignoring order event", logging.Fields{
			"type":     event.Type,
			"order_id": event.OrderID,
		})
		return
	}

	c.handleOrderConfirmed(ctx, string(event.Type), order)
}

// confirmedOrder extracts the order from events that mean "order confirmed".
func (c *KafkaConsumer) confirmedOrder(event *OrderEvent) (*models.Order, bool) {
	switch event.Type {
	case OrderEventConfirmed:
		var order models.Order
		if err := json.Unmarshal(event.Data, &order); err != nil {
			c.logger.Error("Failed to decode order", logging.Fields{
				"order_id": event.OrderID,
				"error":    err.Error(),
			})
			return nil, false
		}
		return fillOrder(&order, event), true

	case OrderEventStatusChanged:
		var change orderStatusChange
		if err := json.Unmarshal(event.Data, &change); err != nil || change.Order == nil {
			return nil, false
		}
		if change.NewStatus != orderStatusConfirmed {
			return nil, false
		}
		return fillOrder(change.Order, event), true
	}

	return nil, false
}

func fillOrder(order *models.Order, event *OrderEvent) *models.Order {
	if order.ID == "" {
		order.ID = event.OrderID
	}
	if order.UserID == "" {
		order.UserID = event.UserID
	}
	return order
}

func (c *KafkaConsumer) handleOrderConfirmed(ctx context.Context, eventType string, order *models.Order) {
	c.logger.Info("Handling order confirmed event", logging.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
	})

	invoice, err := c.invoices.CreateInvoiceFromOrder(ctx, order)
	switch {
	case err == nil:
		metrics.RecordEventConsumed(eventType, "invoiced")
		c.logger.Info("Order invoiced", logging.Fields{
			"order_id":   order.ID,
			"invoice_id": invoice.ID,
			"number":     invoice.Number,
		})
	case errors.Is(err, errors.ErrConflict):
		metrics.RecordEventConsumed(eventType, "duplicate")
		c.logger.Info("Order already invoiced, skipping", logging.Fields{"order_id": order.ID})
	default:
		metrics.RecordEventConsumed(eventType, "failed")
		c.logger.Error("Failed to invoice order", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}
