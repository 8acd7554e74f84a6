package repository

import (
	"context"
	"time"

	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
)

// Ensure the concrete implementations satisfy their interfaces.
var (
	_ InvoiceRepository = (*PostgresInvoiceRepository)(nil)
	_ InvoiceCache      = (*RedisInvoiceCache)(nil)
)

// InvoiceRepository persists invoices and allocates invoice numbers.
type InvoiceRepository interface {
	// Create inserts a new invoice. It returns errors.ErrConflict when the
	// number or order is already invoiced.
	Create(ctx context.Context, invoice *models.Invoice) error

	// GetByID returns errors.ErrNotFound when no invoice has the given ID.
	GetByID(ctx context.Context, id string) (*models.Invoice, error)

	// GetByOrderID returns the invoice issued for an order.
	GetByOrderID(ctx context.Context, orderID string) (*models.Invoice, error)

	// List returns one page of invoices plus the total number of matches.
	List(ctx context.Context, filter *models.InvoiceListFilter) ([]*models.Invoice, int, error)

	// UpdateStatus moves an invoice from status `from` to req.Status, stamping
	// issued_at or paid_at with the given time when applicable. It returns
	// errors.ErrConflict when the invoice is no longer in status `from`.
	UpdateStatus(ctx context.Context, id string, from models.InvoiceStatus, req *models.UpdateInvoiceStatusRequest, at time.Time) (*models.Invoice, error)

	// NextInvoiceNumber allocates the next sequential invoice number.
	NextInvoiceNumber(ctx context.Context, year int) (string, error)
}

// InvoiceCache defines caching operations for invoices.
type InvoiceCache interface {
	Get(ctx context.Context, id string) (*models.Invoice, error)
	Set(ctx context.Context, invoice *models.Invoice) error
	Delete(ctx context.Context, id string) error
}
