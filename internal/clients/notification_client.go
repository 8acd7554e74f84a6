package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tm-acme-shop/acme-shop-billing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/tax"
)

const notificationTypeInvoiceIssued = "invoice_issued"

// NotificationSender delivers customer-facing invoice notifications.
type NotificationSender interface {
	SendInvoiceIssued(ctx context.Context, invoice *models.Invoice) error
}

var _ NotificationSender = (*HTTPNotificationClient)(nil)

// HTTPNotificationClient implements NotificationSender using HTTP.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *logging.LoggerV2
}

// NewHTTPNotificationClient creates a new HTTP-based notification client.
func NewHTTPNotificationClient(cfg config.ServiceConfig, logger *logging.LoggerV2) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// SendInvoiceIssued tells the customer their invoice is ready.
func (c *HTTPNotificationClient) SendInvoiceIssued(ctx context.Context, inv *models.Invoice) error {
	notification := BuildInvoiceIssuedNotification(inv)
	return c.send(ctx, notification)
}

// BuildInvoiceIssuedNotification renders the notification payload for an issued invoice.
func BuildInvoiceIssuedNotification(inv *models.Invoice) *models.InvoiceNotification {
	recipient := inv.CustomerEmail
	if recipient == "" {
		recipient = inv.CustomerID
	}

	totals := inv.Totals.Rounded()
	return &models.InvoiceNotification{
		Type:      notificationTypeInvoiceIssued,
		Recipient: recipient,
		Subject:   fmt.Sprintf("Invoice %s", inv.Number),
		Body: fmt.Sprintf("Your invoice %s of %s is available.",
			inv.Number, tax.FormatMoney(totals.TotalInclTax, inv.Currency)),
		Metadata: map[string]string{
			"invoice_id":        inv.ID,
			"invoice_number":    inv.Number,
			"order_id":          inv.OrderID,
			"subtotal_excl_tax": tax.Format(totals.SubtotalExclTax),
			"tax_amount":        tax.Format(totals.TaxAmount),
			"stamp_duty":        tax.Format(totals.StampDuty),
			"total_incl_tax":    tax.Format(totals.TotalInclTax),
		},
	}
}

func (c *HTTPNotificationClient) send(ctx context.Context, notification *models.InvoiceNotification) error {
	c.logger.Debug("Sending notification", logging.Fields{
		"recipient": notification.Recipient,
		"type":      notification.Type,
	})

	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/api/v2/notifications", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	setHeaders(ctx, req, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to send notification", logging.Fields{
			"recipient": notification.Recipient,
			"error":     err.Error(),
		})
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	c.logger.Info("Notification sent", logging.Fields{
		"recipient": notification.Recipient,
		"type":      notification.Type,
	})
	return nil
}
