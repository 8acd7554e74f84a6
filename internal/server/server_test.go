package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/service"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/tax"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0},
		Tax:    config.TaxConfig{Rate: tax.DefaultRate, StampDuty: tax.DefaultStampDuty, Currency: "TND"},
	}
	svc := service.NewInvoiceService(nil, nil, nil, nil, nil, cfg)
	return New(handlers.NewHandlers(svc, nil, cfg), cfg)
}

func TestServer_QuoteRoute(t *testing.T) {
	s := newTestServer(t)

	body := `{"items":[{"description":"Notebook","quantity":2,"unit_price":25},{"description":"Backpack","quantity":1,"unit_price":75}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v2/invoices/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_incl_tax":"126.000"`)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestServer_PropagatesRequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-abc")
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-abc", w.Header().Get(middleware.HeaderRequestID))
}

func TestServer_MetricsRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServer_PriceQuoteRoute(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/tax/quote", strings.NewReader(`{"price_incl_tax":119,"stamp_duty":0}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_incl_tax":"119.000"`)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	s := newTestServer(t)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_QuoteRejectsOverflowingLine(t *testing.T) {
	s := newTestServer(t)

	body := `{"items":[{"description":"x","quantity":2,"unit_price":1e308}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v2/invoices/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "line amount is too large")
}
