package models

// Customer is the billing view of a storefront customer.
type Customer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	TaxID  string `json:"tax_id,omitempty"`
	Active bool   `json:"active"`
}

// InvoiceNotification is sent to the notification service when an invoice is issued.
type InvoiceNotification struct {
	Type      string            `json:"type"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
