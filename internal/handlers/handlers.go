package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/service"
)

var _ InvoiceService = (*service.InvoiceService)(nil)

// InvoiceService is the billing behaviour exposed over HTTP.
type InvoiceService interface {
	Quote(ctx context.Context, req *models.QuoteRequest) (*models.QuoteResponse, error)
	QuotePrice(ctx context.Context, req *models.PriceQuoteRequest) (*models.QuoteResponse, error)
	CreateInvoice(ctx context.Context, req *models.CreateInvoiceRequest) (*models.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	ListInvoices(ctx context.Context, filter *models.InvoiceListFilter) ([]*models.Invoice, int, error)
	UpdateInvoiceStatus(ctx context.Context, id string, req *models.UpdateInvoiceStatusRequest) (*models.Invoice, error)
	CancelInvoice(ctx context.Context, id string, reason string) (*models.Invoice, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Handlers holds all HTTP handlers for the billing service.
type Handlers struct {
	invoiceService InvoiceService
	readiness      map[string]ReadinessCheck
	config         *config.Config
	logger         *logging.LoggerV2
}

// NewHandlers creates a new handlers instance.
func NewHandlers(invoiceService InvoiceService, readiness map[string]ReadinessCheck, cfg *config.Config) *Handlers {
	return &Handlers{
		invoiceService: invoiceService,
		readiness:      readiness,
		config:         cfg,
		logger:         logging.NewLoggerV2("handlers"),
	}
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	if errors.Is(err, errors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if errors.Is(err, errors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
		return
	}

	if validationErr, ok := errors.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   validationErr.Message,
			"details": validationErr.Details,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
