package models

import (
	"time"

	"github.com/tm-acme-shop/acme-shop-billing-service/internal/tax"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:     {InvoiceStatusIssued, InvoiceStatusCancelled},
	InvoiceStatusIssued:    {InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:      {},
	InvoiceStatusCancelled: {},
}

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	_, ok := invoiceTransitions[s]
	return ok
}

// Invoice is a billed order with its computed tax breakdown.
type Invoice struct {
	ID            string         `json:"id"`
	Number        string         `json:"number"`
	OrderID       string         `json:"order_id,omitempty"`
	CustomerID    string         `json:"customer_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	Status        InvoiceStatus  `json:"status"`
	Items         []tax.LineItem `json:"items"`
	Totals        tax.Breakdown  `json:"totals"`
	TaxRate       float64        `json:"tax_rate"`
	Currency      string         `json:"currency"`
	Notes         string         `json:"notes,omitempty"`
	IssuedAt      *time.Time     `json:"issued_at,omitempty"`
	DueAt         *time.Time     `json:"due_at,omitempty"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CanTransitionTo reports whether the invoice may move to the given status.
func (i *Invoice) CanTransitionTo(to InvoiceStatus) bool {
	for _, s := range invoiceTransitions[i.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether the invoice can still be cancelled.
func (i *Invoice) CanCancel() bool {
	return i.CanTransitionTo(InvoiceStatusCancelled)
}

// CreateInvoiceRequest is the admin billing form payload.
type CreateInvoiceRequest struct {
	OrderID    string         `json:"order_id"`
	CustomerID string         `json:"customer_id"`
	Items      []tax.LineItem `json:"items"`
	Currency   string         `json:"currency"`
	Notes      string         `json:"notes"`
	DueInDays  int            `json:"due_in_days"`
}

// QuoteRequest previews the totals of a cart or invoice draft.
type QuoteRequest struct {
	Items []tax.LineItem `json:"items"`
}

// PriceQuoteRequest splits a single tax-inclusive price. StampDuty defaults
// to the configured duty when omitted.
type PriceQuoteRequest struct {
	PriceInclTax float64  `json:"price_incl_tax"`
	StampDuty    *float64 `json:"stamp_duty"`
}

// QuoteResponse carries both raw and display-ready values.
type QuoteResponse struct {
	Breakdown tax.Breakdown     `json:"breakdown"`
	Display   map[string]string `json:"display"`
	TaxRate   float64           `json:"tax_rate"`
	Currency  string            `json:"currency"`
}

// UpdateInvoiceStatusRequest moves an invoice through its lifecycle.
type UpdateInvoiceStatusRequest struct {
	Status InvoiceStatus `json:"status"`
	Notes  string        `json:"notes"`
}

// InvoiceListFilter narrows invoice listings.
type InvoiceListFilter struct {
	CustomerID string         `json:"customer_id,omitempty"`
	Status     *InvoiceStatus `json:"status,omitempty"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
}
