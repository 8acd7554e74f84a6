package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tm-acme-shop/acme-shop-billing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/models"
)

// CustomerClient looks up the customer an invoice is billed to.
type CustomerClient interface {
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
}

var _ CustomerClient = (*HTTPCustomerClient)(nil)

// HTTPCustomerClient implements CustomerClient using HTTP.
type HTTPCustomerClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *logging.LoggerV2
}

// NewHTTPCustomerClient creates a new HTTP-based customer client.
func NewHTTPCustomerClient(cfg config.ServiceConfig, logger *logging.LoggerV2) *HTTPCustomerClient {
	return &HTTPCustomerClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// GetCustomer retrieves a customer by ID. Unknown customers yield errors.ErrNotFound.
func (c *HTTPCustomerClient) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	c.logger.Debug("Fetching customer", logging.Fields{"customer_id": customerID})

	endpoint := fmt.Sprintf("%s/api/v2/customers/%s", c.baseURL, url.PathEscape(customerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	setHeaders(ctx, req, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch customer", logging.Fields{
			"customer_id": customerID,
			"error":       err.Error(),
		})
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("customer service returned status %d", resp.StatusCode)
	}

	var customer models.Customer
	if err := json.NewDecoder(resp.Body).Decode(&customer); err != nil {
		return nil, err
	}

	c.logger.Debug("Customer fetched", logging.Fields{
		"customer_id": customer.ID,
		"active":      customer.Active,
	})

	return &customer, nil
}
