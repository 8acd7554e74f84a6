package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/middleware"
)

// Server owns the HTTP listener and route table.
type Server struct {
	config     *config.Config
	router     *gin.Engine
	handlers   *handlers.Handlers
	httpServer *http.Server
	logger     *logging.LoggerV2
}

// New builds the router and registers every route.
func New(h *handlers.Handlers, cfg *config.Config) *Server {
	logger := logging.NewLoggerV2("http")

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		metrics.Middleware(),
		middleware.AccessLog(logger),
	)

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		logger:   logger,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/live", s.handlers.Live)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v2 := s.router.Group("/api/v2")
	{
		v2.POST("/tax/quote", s.handlers.QuotePrice)

		v2.POST("/invoices/quote", s.handlers.QuoteInvoice)
		v2.POST("/invoices", s.handlers.CreateInvoice)
		v2.GET("/invoices", s.handlers.ListInvoices)
		v2.GET("/invoices/:id", s.handlers.GetInvoice)
		v2.PATCH("/invoices/:id/status", s.handlers.UpdateInvoiceStatus)
		v2.POST("/invoices/:id/cancel", s.handlers.CancelInvoice)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting server", logging.Fields{"addr": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
