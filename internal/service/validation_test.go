package service

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/tax"
)

func TestValidateLineItems(t *testing.T) {
	tests := []struct {
		name    string
		item    tax.LineItem
		wantErr bool
	}{
		{"valid", tax.LineItem{Description: "Pen", Quantity: 1, UnitPrice: 2.5}, false},
		{"free item", tax.LineItem{Description: "Sticker", Quantity: 3, UnitPrice: 0}, false},
		{"blank description", tax.LineItem{Description: " ", Quantity: 1, UnitPrice: 1}, true},
		{"zero quantity", tax.LineItem{Description: "Pen", Quantity: 0, UnitPrice: 1}, true},
		{"negative price", tax.LineItem{Description: "Pen", Quantity: 1, UnitPrice: -0.001}, true},
		{"NaN price", tax.LineItem{Description: "Pen", Quantity: 1, UnitPrice: math.NaN()}, true},
		{"infinite price", tax.LineItem{Description: "Pen", Quantity: 1, UnitPrice: math.Inf(1)}, true},
		{"line amount overflows", tax.LineItem{Description: "Yacht", Quantity: 2, UnitPrice: 1e308}, true},
		{"largest finite line", tax.LineItem{Description: "Yacht", Quantity: 1, UnitPrice: math.MaxFloat64}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLineItems([]tax.LineItem{tt.item})
			if tt.wantErr {
				assert.True(t, errors.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLineItems_SubtotalOverflow(t *testing.T) {
	items := []tax.LineItem{
		{Description: "Yacht", Quantity: 1, UnitPrice: 1e308},
		{Description: "Second yacht", Quantity: 1, UnitPrice: 1e308},
	}

	ve, ok := errors.AsValidation(ValidateLineItems(items))
	if assert.True(t, ok) {
		assert.Equal(t, "items", ve.Field)
	}
}

func TestValidatePriceQuoteRequest(t *testing.T) {
	negative := -1.0
	assert.NoError(t, ValidatePriceQuoteRequest(&models.PriceQuoteRequest{PriceInclTax: 10}))
	assert.Error(t, ValidatePriceQuoteRequest(&models.PriceQuoteRequest{PriceInclTax: -10}))
	assert.Error(t, ValidatePriceQuoteRequest(&models.PriceQuoteRequest{PriceInclTax: 10, StampDuty: &negative}))
}

func TestValidateUpdateInvoiceStatusRequest(t *testing.T) {
	assert.NoError(t, ValidateUpdateInvoiceStatusRequest(&models.UpdateInvoiceStatusRequest{Status: models.InvoiceStatusIssued}))
	assert.Error(t, ValidateUpdateInvoiceStatusRequest(&models.UpdateInvoiceStatusRequest{}))
	assert.Error(t, ValidateUpdateInvoiceStatusRequest(&models.UpdateInvoiceStatusRequest{Status: "refunded"}))
}

func TestValidateCancellationReason(t *testing.T) {
	assert.NoError(t, ValidateCancellationReason("duplicate"))
	assert.Error(t, ValidateCancellationReason(""))
	assert.Error(t, ValidateCancellationReason(strings.Repeat("x", 501)))
}

func TestSanitizeNotes(t *testing.T) {
	assert.Equal(t, "&lt;script&gt;", SanitizeNotes("  <script>  "))
	assert.Equal(t, "fish &amp; chips", SanitizeNotes("fish & chips"))
	assert.Len(t, SanitizeNotes(strings.Repeat("a", 2000)), 1000)
}

func TestSanitizeNotes_TruncatesOnBoundaries(t *testing.T) {
	inputs := []string{
		strings.Repeat("<", 199) + "a" + strings.Repeat("é", 300),
		strings.Repeat("é", 800),
		strings.Repeat("<", 400),
		strings.Repeat("a", 998) + "<<",
		"ok\xff\xfe" + strings.Repeat("€", 500),
	}

	for _, in := range inputs {
		out := SanitizeNotes(in)
		assert.True(t, utf8.ValidString(out), "invalid UTF-8 in %q", out)
		assert.LessOrEqual(t, len(out), maxNotesLength)

		if amp := strings.LastIndexByte(out, '&'); amp >= 0 {
			assert.Contains(t, out[amp:], ";", "entity cut in half: %q", out[amp:])
		}
	}
}

func TestValidateCreateInvoiceRequest_NotesMeasuredEscaped(t *testing.T) {
	req := &models.CreateInvoiceRequest{
		CustomerID: "cus_1",
		Items:      []tax.LineItem{{Description: "Pen", Quantity: 1, UnitPrice: 2}},
		Notes:      strings.Repeat("<", 199) + "a" + strings.Repeat("é", 300),
	}

	ve, ok := errors.AsValidation(ValidateCreateInvoiceRequest(req, "TND"))
	if assert.True(t, ok) {
		assert.Equal(t, "notes", ve.Field)
	}

	req.Notes = strings.Repeat("<", 250)
	assert.NoError(t, ValidateCreateInvoiceRequest(req, "TND"))
}
