package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/tax"
)

const (
	defaultDueInDays = 30

	sourceAPI   = "api"
	sourceOrder = "order_event"
)

// InvoiceEventPublisher announces invoice lifecycle changes.
type InvoiceEventPublisher interface {
	PublishInvoiceCreated(ctx context.Context, invoice *models.Invoice) error
	PublishInvoiceStatusChanged(ctx context.Context, invoice *models.Invoice, previous models.InvoiceStatus) error
	PublishInvoiceCancelled(ctx context.Context, invoice *models.Invoice, reason string) error
}

// InvoiceService handles invoicing and tax quoting.
type InvoiceService struct {
	invoiceRepo    repository.InvoiceRepository
	invoiceCache   repository.InvoiceCache
	customerClient clients.CustomerClient
	notifier       clients.NotificationSender
	eventPublisher InvoiceEventPublisher
	calculator     tax.Calculator
	config         *config.Config
	logger         *logging.LoggerV2

	now           func() time.Time
	newID         func() string
	notifications sync.WaitGroup
}

// NewInvoiceService creates a new invoice service. The calculator is built
// from cfg.Tax, so every invoice of a running service uses one stamp duty policy.
func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	invoiceCache repository.InvoiceCache,
	customerClient clients.CustomerClient,
	notifier clients.NotificationSender,
	eventPublisher InvoiceEventPublisher,
	cfg *config.Config,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo:    invoiceRepo,
		invoiceCache:   invoiceCache,
		customerClient: customerClient,
		notifier:       notifier,
		eventPublisher: eventPublisher,
		calculator:     tax.New(tax.Config{Rate: cfg.Tax.Rate, StampDuty: cfg.Tax.StampDuty}),
		config:         cfg,
		logger:         logging.NewLoggerV2("invoice-service"),
		now:            time.Now,
		newID:          func() string { return "inv_" + uuid.NewString() },
	}
}

// Calculator exposes the configured tax calculator.
func (s *InvoiceService) Calculator() tax.Calculator {
	return s.calculator
}

// Quote previews the totals of a set of lines without persisting anything.
func (s *InvoiceService) Quote(ctx context.Context, req *models.QuoteRequest) (*models.QuoteResponse, error) {
	if err := ValidateLineItems(req.Items); err != nil {
		return nil, err
	}

	breakdown := s.calculator.InvoiceTotals(req.Items)
	metrics.RecordQuote("invoice")

	s.logger.Debug("Invoice quote computed", logging.Fields{
		"item_count": len(req.Items),
		"total":      breakdown.TotalInclTax,
	})

	return s.quoteResponse(breakdown), nil
}

// QuotePrice splits a single tax-inclusive price. When the request carries
// no stamp duty the configured duty applies.
func (s *InvoiceService) QuotePrice(ctx context.Context, req *models.PriceQuoteRequest) (*models.QuoteResponse, error) {
	if err := ValidatePriceQuoteRequest(req); err != nil {
		return nil, err
	}

	stampDuty := s.calculator.StampDuty()
	if req.StampDuty != nil {
		stampDuty = *req.StampDuty
	}

	breakdown := s.calculator.Breakdown(req.PriceInclTax, stampDuty)
	metrics.RecordQuote("price")

	return s.quoteResponse(breakdown), nil
}

func (s *InvoiceService) quoteResponse(b tax.Breakdown) *models.QuoteResponse {
	rounded := b.Rounded()
	return &models.QuoteResponse{
		Breakdown: rounded,
		Display: map[string]string{
			"subtotal_excl_tax": tax.Format(b.SubtotalExclTax),
			"tax_amount":        tax.Format(b.TaxAmount),
			"stamp_duty":        tax.Format(b.StampDuty),
			"total_incl_tax":    tax.Format(b.TotalInclTax),
		},
		TaxRate:  s.calculator.Rate(),
		Currency: s.config.Tax.Currency,
	}
}

// CreateInvoice bills a customer for a set of lines. The invoice starts as a draft.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req *models.CreateInvoiceRequest) (*models.Invoice, error) {
	return s.createInvoice(ctx, req, sourceAPI)
}

func (s *InvoiceService) createInvoice(ctx context.Context, req *models.CreateInvoiceRequest, source string) (*models.Invoice, error) {
	s.logger.Info("Creating invoice", logging.Fields{
		"customer_id": req.CustomerID,
		"order_id":    req.OrderID,
		"item_count":  len(req.Items),
		"source":      source,
	})

	if err := ValidateCreateInvoiceRequest(req, s.config.Tax.Currency); err != nil {
		return nil, err
	}

	if req.OrderID != "" {
		existing, err := s.invoiceRepo.GetByOrderID(ctx, req.OrderID)
		if err == nil && existing != nil {
			s.logger.Info("Order already invoiced", logging.Fields{
				"order_id":   req.OrderID,
				"invoice_id": existing.ID,
			})
			return nil, errors.ErrConflict
		}
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
	}

	customer, err := s.lookupCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	number, err := s.invoiceRepo.NextInvoiceNumber(ctx, now.Year())
	if err != nil {
		s.logger.Error("Failed to allocate invoice number", logging.Fields{"error": err.Error()})
		return nil, err
	}

	dueInDays := req.DueInDays
	if dueInDays == 0 {
		dueInDays = defaultDueInDays
	}
	dueAt := now.AddDate(0, 0, dueInDays)

	items := make([]tax.LineItem, len(req.Items))
	copy(items, req.Items)

	invoice := &models.Invoice{
		ID:            s.newID(),
		Number:        number,
		OrderID:       req.OrderID,
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		Status:        models.InvoiceStatusDraft,
		Items:         items,
		Totals:        s.calculator.InvoiceTotals(items),
		TaxRate:       s.calculator.Rate(),
		Currency:      s.config.Tax.Currency,
		Notes:         SanitizeNotes(req.Notes),
		DueAt:         &dueAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, err
	}

	metrics.RecordInvoiceCreated(source, invoice.Totals.TotalInclTax)
	s.cacheInvoice(ctx, invoice)

	if s.config.Features.EnableInvoiceEvents {
		if err := s.eventPublisher.PublishInvoiceCreated(ctx, invoice); err != nil {
			// Log but don't fail
			s.logger.Error("Failed to publish invoice created event", logging.Fields{
				"invoice_id": invoice.ID,
				"error":      err.Error(),
			})
		}
	}

	s.logger.Info("Invoice created successfully", logging.Fields{
		"invoice_id": invoice.ID,
		"number":     invoice.Number,
		"total":      tax.Format(invoice.Totals.TotalInclTax),
	})

	return invoice, nil
}

// CreateInvoiceFromOrder invoices a confirmed storefront order. It returns
// errors.ErrConflict when the order already has an invoice.
func (s *InvoiceService) CreateInvoiceFromOrder(ctx context.Context, order *models.Order) (*models.Invoice, error) {
	if order.ID == "" {
		return nil, errors.NewValidationError("order_id", "order ID is required")
	}

	items := make([]tax.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		description := item.ProductName
		if description == "" {
			description = item.ProductID
		}
		items = append(items, tax.LineItem{
			Description: description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	req := &models.CreateInvoiceRequest{
		OrderID:    order.ID,
		CustomerID: order.UserID,
		Items:      items,
		Currency:   order.Currency,
		Notes:      fmt.Sprintf("Order %s", order.ID),
	}

	return s.createInvoice(ctx, req, sourceOrder)
}

func (s *InvoiceService) lookupCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	customer, err := s.customerClient.GetCustomer(ctx, customerID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.NewValidationError("customer_id", "customer not found")
	}
	if err != nil {
		s.logger.Error("Failed to fetch customer", logging.Fields{
			"customer_id": customerID,
			"error":       err.Error(),
		})
		return nil, err
	}
	if !customer.Active {
		return nil, errors.NewValidationError("customer_id", "customer is inactive")
	}
	return customer, nil
}

// GetInvoice retrieves an invoice by ID, cache first.
func (s *InvoiceService) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	s.logger.Debug("Getting invoice", logging.Fields{"invoice_id": id})

	if s.config.Features.EnableInvoiceCaching {
		if invoice, err := s.invoiceCache.Get(ctx, id); err == nil && invoice != nil {
			return invoice, nil
		}
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheInvoice(ctx, invoice)
	return invoice, nil
}

// ListInvoices retrieves one page of invoices and the total match count.
func (s *InvoiceService) ListInvoices(ctx context.Context, filter *models.InvoiceListFilter) ([]*models.Invoice, int, error) {
	if err := ValidateInvoiceListFilter(filter); err != nil {
		return nil, 0, err
	}

	s.logger.Debug("Listing invoices", logging.Fields{
		"customer_id": filter.CustomerID,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})

	return s.invoiceRepo.List(ctx, filter)
}

// UpdateInvoiceStatus moves an invoice through its lifecycle.
func (s *InvoiceService) UpdateInvoiceStatus(ctx context.Context, id string, req *models.UpdateInvoiceStatusRequest) (*models.Invoice, error) {
	if err := ValidateUpdateInvoiceStatusRequest(req); err != nil {
		return nil, err
	}

	if req.Status == models.InvoiceStatusCancelled {
		return s.CancelInvoice(ctx, id, req.Notes)
	}

	s.logger.Info("Updating invoice status", logging.Fields{
		"invoice_id": id,
		"new_status": req.Status,
	})

	current, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.CanTransitionTo(req.Status) {
		return nil, errors.NewValidationError("status", fmt.Sprintf(
			"invalid status transition from %s to %s",
			current.Status,
			req.Status,
		))
	}

	previous := current.Status
	update := &models.UpdateInvoiceStatusRequest{Status: req.Status, Notes: SanitizeNotes(req.Notes)}

	invoice, err := s.invoiceRepo.UpdateStatus(ctx, id, previous, update, s.now().UTC())
	if err != nil {
		return nil, err
	}

	metrics.RecordStatusChange(string(invoice.Status))
	s.invalidate(ctx, id)

	if s.config.Features.EnableInvoiceEvents {
		if err := s.eventPublisher.PublishInvoiceStatusChanged(ctx, invoice, previous); err != nil {
			s.logger.Error("Failed to publish status change event", logging.Fields{
				"invoice_id": invoice.ID,
				"error":      err.Error(),
			})
		}
	}

	if invoice.Status == models.InvoiceStatusIssued {
		s.notifyIssued(invoice)
	}

	return invoice, nil
}

// CancelInvoice voids a draft or issued invoice.
func (s *InvoiceService) CancelInvoice(ctx context.Context, id string, reason string) (*models.Invoice, error) {
	if err := ValidateCancellationReason(reason); err != nil {
		return nil, err
	}

	s.logger.Info("Cancelling invoice", logging.Fields{
		"invoice_id": id,
		"reason":     reason,
	})

	current, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.CanCancel() {
		return nil, errors.NewValidationError("status", fmt.Sprintf("invoice cannot be cancelled in %s state", current.Status))
	}

	reason = SanitizeNotes(reason)
	req := &models.UpdateInvoiceStatusRequest{
		Status: models.InvoiceStatusCancelled,
		Notes:  reason,
	}

	invoice, err := s.invoiceRepo.UpdateStatus(ctx, id, current.Status, req, s.now().UTC())
	if err != nil {
		return nil, err
	}

	metrics.RecordStatusChange(string(invoice.Status))
	s.invalidate(ctx, id)

	if s.config.Features.EnableInvoiceEvents {
		if err := s.eventPublisher.PublishInvoiceCancelled(ctx, invoice, reason); err != nil {
			s.logger.Error("Failed to publish invoice cancelled event", logging.Fields{
				"invoice_id": invoice.ID,
				"error":      err.Error(),
			})
		}
	}

	return invoice, nil
}

// WaitForNotifications blocks until in-flight notifications complete.
func (s *InvoiceService) WaitForNotifications() {
	s.notifications.Wait()
}

func (s *InvoiceService) notifyIssued(invoice *models.Invoice) {
	if !s.config.Features.EnableNotifications || s.notifier == nil {
		return
	}

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.notifier.SendInvoiceIssued(ctx, invoice); err != nil {
			s.logger.Warn("Failed to send invoice notification", logging.Fields{
				"invoice_id": invoice.ID,
				"error":      err.Error(),
			})
		}
	}()
}

func (s *InvoiceService) cacheInvoice(ctx context.Context, invoice *models.Invoice) {
	if !s.config.Features.EnableInvoiceCaching {
		return
	}
	if err := s.invoiceCache.Set(ctx, invoice); err != nil {
		// Log but don't fail
		s.logger.Error("Failed to cache invoice", logging.Fields{
			"invoice_id": invoice.ID,
			"error":      err.Error(),
		})
	}
}

func (s *InvoiceService) invalidate(ctx context.Context, id string) {
	if !s.config.Features.EnableInvoiceCaching {
		return
	}
	if err := s.invoiceCache.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to invalidate cached invoice", logging.Fields{
			"invoice_id": id,
			"error":      err.Error(),
		})
	}
}

// NormalizeStatus parses a user-supplied status filter.
func NormalizeStatus(raw string) (*models.InvoiceStatus, error) {
	if raw == "" {
		return nil, nil
	}
	status := models.InvoiceStatus(strings.ToLower(raw))
	if !status.Valid() {
		return nil, errors.NewValidationError("status", "invalid invoice status")
	}
	return &status, nil
}
