package service

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/tm-acme-shop/acme-shop-billing-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/tax"
)

const (
	maxListLimit     = 100
	defaultListLimit = 20
	maxDueInDays     = 365
	maxNotesLength   = 1000
	maxReasonLength  = 500
)

// ValidateLineItems checks every line of an invoice or quote.
func ValidateLineItems(items []tax.LineItem) error {
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)

		if strings.TrimSpace(item.Description) == "" {
			return errors.NewValidationError(field, "description is required")
		}

		if item.Quantity <= 0 {
			return errors.NewValidationError(field, "quantity must be positive")
		}

		if math.IsNaN(item.UnitPrice) || math.IsInf(item.UnitPrice, 0) {
			return errors.NewValidationError(field, "unit price must be a finite number")
		}

		if item.UnitPrice < 0 {
			return errors.NewValidationError(field, "unit price cannot be negative")
		}

		if !isFinite(item.Amount()) {
			return errors.NewValidationError(field, "line amount is too large")
		}
	}

	if !isFinite(tax.Subtotal(items)) {
		return errors.NewValidationError("items", "invoice subtotal is too large")
	}

	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ValidateCreateInvoiceRequest validates an invoice creation request.
// An empty currency is accepted and later defaulted to the billing currency.
func ValidateCreateInvoiceRequest(req *models.CreateInvoiceRequest, currency string) error {
	if req.CustomerID == "" {
		return errors.NewValidationError("customer_id", "customer ID is required")
	}

	if len(req.Items) == 0 {
		return errors.NewValidationError("items", "at least one item is required")
	}

	if err := ValidateLineItems(req.Items); err != nil {
		return err
	}

	if err := validateCurrency(req.Currency, currency); err != nil {
		return err
	}

	if req.DueInDays < 0 || req.DueInDays > maxDueInDays {
		return errors.NewValidationError("due_in_days", fmt.Sprintf("due_in_days must be between 0 and %d", maxDueInDays))
	}

	if err := validateNotes(req.Notes); err != nil {
		return err
	}

	return nil
}

// validateNotes bounds notes as stored, after markup is escaped.
func validateNotes(notes string) error {
	if len(escapeNotes(notes)) > maxNotesLength {
		return errors.NewValidationError("notes", "notes too long (max 1000 characters)")
	}
	return nil
}

func validateCurrency(got, want string) error {
	if got == "" {
		return nil
	}
	if !strings.EqualFold(got, want) {
		return errors.NewValidationError("currency", fmt.Sprintf("only %s is supported", want))
	}
	return nil
}

// ValidatePriceQuoteRequest validates a single-price breakdown request.
func ValidatePriceQuoteRequest(req *models.PriceQuoteRequest) error {
	if math.IsNaN(req.PriceInclTax) || math.IsInf(req.PriceInclTax, 0) {
		return errors.NewValidationError("price_incl_tax", "price must be a finite number")
	}

	if req.PriceInclTax < 0 {
		return errors.NewValidationError("price_incl_tax", "price cannot be negative")
	}

	if req.StampDuty != nil {
		d := *req.StampDuty
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return errors.NewValidationError("stamp_duty", "stamp duty must be a non-negative number")
		}
	}

	return nil
}

// ValidateUpdateInvoiceStatusRequest validates a status update request.
func ValidateUpdateInvoiceStatusRequest(req *models.UpdateInvoiceStatusRequest) error {
	if req.Status == "" {
		return errors.NewValidationError("status", "status is required")
	}

	if !req.Status.Valid() {
		return errors.NewValidationError("status", "invalid invoice status")
	}

	if err := validateNotes(req.Notes); err != nil {
		return err
	}

	return nil
}

// ValidateInvoiceListFilter validates a list filter and applies the page size defaults.
func ValidateInvoiceListFilter(filter *models.InvoiceListFilter) error {
	if filter.Limit < 0 {
		return errors.NewValidationError("limit", "limit cannot be negative")
	}

	if filter.Offset < 0 {
		return errors.NewValidationError("offset", "offset cannot be negative")
	}

	if filter.Status != nil && !filter.Status.Valid() {
		return errors.NewValidationError("status", "invalid invoice status")
	}

	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	return nil
}

// ValidateCancellationReason validates an invoice cancellation reason.
func ValidateCancellationReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errors.NewValidationError("reason", "cancellation reason is required")
	}

	if len(reason) > maxReasonLength {
		return errors.NewValidationError("reason", "cancellation reason too long (max 500 characters)")
	}

	return nil
}

// SanitizeNotes escapes markup and trims free-text notes. The result is at
// most maxNotesLength bytes of valid UTF-8 and never ends inside an entity.
func SanitizeNotes(notes string) string {
	notes = escapeNotes(notes)

	if len(notes) <= maxNotesLength {
		return notes
	}

	cut := maxNotesLength
	for cut > 0 && !utf8.RuneStart(notes[cut]) {
		cut--
	}
	notes = notes[:cut]

	if amp := strings.LastIndexByte(notes, '&'); amp >= 0 && !strings.Contains(notes[amp:], ";") {
		notes = notes[:amp]
	}

	return strings.TrimSpace(notes)
}

func escapeNotes(notes string) string {
	notes = strings.ToValidUTF8(notes, "")
	notes = strings.ReplaceAll(notes, "&", "&amp;")
	notes = strings.ReplaceAll(notes, "<", "&lt;")
	notes = strings.ReplaceAll(notes, ">", "&gt;")
	notes = strings.ReplaceAll(notes, "\"", "&quot;")
	return strings.TrimSpace(notes)
}
