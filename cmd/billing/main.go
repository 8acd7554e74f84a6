package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tm-acme-shop/acme-shop-billing-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-billing-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()
	logging.Configure(os.Stdout, cfg.Log.Level)

	logger := logging.NewLoggerV2("billing-service")

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", logging.Fields{"error": err.Error()})
	}

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	invoiceRepo := repository.NewPostgresInvoiceRepository(db, logging.NewLoggerV2("invoice-repository"))
	invoiceCache := repository.NewRedisInvoiceCache(cfg.Redis)

	customerClient := clients.NewHTTPCustomerClient(cfg.CustomerService, logger)
	notificationClient := clients.NewHTTPNotificationClient(cfg.NotificationService, logger)

	var eventPublisher service.InvoiceEventPublisher = events.NoopPublisher{}
	if cfg.Features.EnableInvoiceEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, logging.NewLoggerV2("invoice-publisher"))
		defer kafkaPublisher.Close()
		eventPublisher = kafkaPublisher
	}

	invoiceService := service.NewInvoiceService(
		invoiceRepo,
		invoiceCache,
		customerClient,
		notificationClient,
		eventPublisher,
		cfg,
	)

	readiness := map[string]handlers.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if cfg.Features.EnableInvoiceCaching {
		readiness["redis"] = invoiceCache.Ping
	}

	h := handlers.NewHandlers(invoiceService, readiness, cfg)
	srv := server.New(h, cfg)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":                   cfg.Server.Port,
			"tax_rate":               cfg.Tax.Rate,
			"stamp_duty":             cfg.Tax.StampDuty,
			"currency":               cfg.Tax.Currency,
			"enable_invoice_events":  cfg.Features.EnableInvoiceEvents,
			"enable_invoice_caching": cfg.Features.EnableInvoiceCaching,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var eventConsumer *events.KafkaConsumer
	if cfg.Features.EnableOrderConsumer {
		eventConsumer = events.NewKafkaConsumer(cfg.Kafka, invoiceService, logging.NewLoggerV2("order-consumer"))
		go func() {
			if err := eventConsumer.Start(consumerCtx); err != nil && err != context.Canceled {
				logger.Error("Event consumer failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if eventConsumer != nil {
		eventConsumer.Stop()
	}
	stopConsumer()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	invoiceService.WaitForNotifications()

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logging.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})

	return db, nil
}
