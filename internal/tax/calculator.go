// Package tax converts tax-inclusive (TTC) amounts into their tax-exclusive
// (HT) base, VAT amount and stamp duty, and aggregates invoice lines.
//
// All arithmetic keeps full float64 precision. Values are rounded to the
// three-decimal currency unit only when presented, see Round and Format.
package tax

const (
	// DefaultRate is the VAT rate applied to the tax-exclusive base.
	DefaultRate = 0.19

	// DefaultStampDuty is the fixed fiscal charge added once per invoice.
	DefaultStampDuty = 1.0
)

// Config selects the jurisdiction's VAT rate and stamp duty.
type Config struct {
	Rate      float64
	StampDuty float64
}

// DefaultConfig returns the rate and stamp duty used when nothing is configured.
func DefaultConfig() Config {
	return Config{Rate: DefaultRate, StampDuty: DefaultStampDuty}
}

// LineItem is a single invoice or cart line. UnitPrice is tax-inclusive.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Amount returns quantity × unit price.
func (l LineItem) Amount() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Breakdown is the derived tax split of a tax-inclusive amount.
// TotalInclTax == SubtotalExclTax + TaxAmount + StampDuty.
type Breakdown struct {
	SubtotalExclTax float64 `json:"subtotal_excl_tax"`
	TaxAmount       float64 `json:"tax_amount"`
	StampDuty       float64 `json:"stamp_duty"`
	TotalInclTax    float64 `json:"total_incl_tax"`
}

// Rounded returns a copy with every field rounded to the currency precision.
// The total is rounded from the unrounded sum, not re-added from rounded parts.
func (b Breakdown) Rounded() Breakdown {
	return Breakdown{
		SubtotalExclTax: Round(b.SubtotalExclTax),
		TaxAmount:       Round(b.TaxAmount),
		StampDuty:       Round(b.StampDuty),
		TotalInclTax:    Round(b.TotalInclTax),
	}
}

// Calculator applies a fixed VAT rate and stamp duty. The zero value is not
// useful; build one with New. A Calculator is immutable and safe to share.
type Calculator struct {
	rate      float64
	stampDuty float64
}

// New creates a calculator for the given configuration.
func New(cfg Config) Calculator {
	return Calculator{rate: cfg.Rate, stampDuty: cfg.StampDuty}
}

// Rate returns the configured VAT rate.
func (c Calculator) Rate() float64 { return c.rate }

// StampDuty returns the configured per-invoice stamp duty.
func (c Calculator) StampDuty() float64 { return c.stampDuty }

// WithStampDuty returns a calculator with the same rate and a different duty.
func (c Calculator) WithStampDuty(stampDuty float64) Calculator {
	c.stampDuty = stampDuty
	return c
}

// PriceExclTax converts a tax-inclusive price to its tax-exclusive base.
// priceInclTax must be >= 0; callers validate before calling.
func (c Calculator) PriceExclTax(priceInclTax float64) float64 {
	return priceInclTax / (1 + c.rate)
}

// TaxAmount returns the VAT owed on a tax-exclusive base.
func (c Calculator) TaxAmount(priceExclTax float64) float64 {
	return priceExclTax * c.rate
}

// TotalInclTax re-applies VAT to a tax-exclusive base, optionally adding the
// configured stamp duty.
func (c Calculator) TotalInclTax(priceExclTax float64, includeStampDuty bool) float64 {
	total := priceExclTax + c.TaxAmount(priceExclTax)
	if includeStampDuty {
		total += c.stampDuty
	}
	return total
}

// Breakdown splits a single tax-inclusive amount using an explicit stamp duty.
// The stamp duty only affects TotalInclTax.
func (c Calculator) Breakdown(priceInclTax, stampDuty float64) Breakdown {
	excl := c.PriceExclTax(priceInclTax)
	vat := c.TaxAmount(excl)
	return Breakdown{
		SubtotalExclTax: excl,
		TaxAmount:       vat,
		StampDuty:       stampDuty,
		TotalInclTax:    excl + vat + stampDuty,
	}
}

// InvoiceTotals aggregates tax-inclusive line items into an invoice breakdown.
// The configured stamp duty is always included, so an empty invoice totals
// exactly the stamp duty.
func (c Calculator) InvoiceTotals(items []LineItem) Breakdown {
	return c.Breakdown(Subtotal(items), c.stampDuty)
}

// Subtotal sums quantity × unit price over all lines.
func Subtotal(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Amount()
	}
	return total
}
