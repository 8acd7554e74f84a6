package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server              ServerConfig
	Database            DatabaseConfig
	Redis               RedisConfig
	Kafka               KafkaConfig
	CustomerService     ServiceConfig
	NotificationService ServiceConfig
	Tax                 TaxConfig
	Features            FeatureFlags
	Log                 LogConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	InvoicesTopic string
	OrdersTopic   string
	ConsumerGroup string
}

type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

// TaxConfig holds the jurisdiction's VAT rate and per-invoice stamp duty.
type TaxConfig struct {
	Rate      float64
	StampDuty float64
	Currency  string
}

type FeatureFlags struct {
	EnableInvoiceCaching bool
	EnableInvoiceEvents  bool
	EnableOrderConsumer  bool
	EnableNotifications  bool
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8086),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "acme"),
			Password:     getEnvString("DB_PASSWORD", "acme"),
			Name:         getEnvString("DB_NAME", "acme_billing"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 300)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			InvoicesTopic: getEnvString("KAFKA_INVOICES_TOPIC", "invoices"),
			OrdersTopic:   getEnvString("KAFKA_ORDERS_TOPIC", "orders"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", "billing-service"),
		},
		CustomerService: ServiceConfig{
			BaseURL: getEnvString("CUSTOMER_SERVICE_URL", "http://localhost:8081"),
			Timeout: time.Duration(getEnvInt("CUSTOMER_SERVICE_TIMEOUT", 10)) * time.Second,
			APIKey:  getEnvString("CUSTOMER_SERVICE_API_KEY", ""),
		},
		NotificationService: ServiceConfig{
			BaseURL: getEnvString("NOTIFICATION_SERVICE_URL", "http://localhost:8084"),
			Timeout: time.Duration(getEnvInt("NOTIFICATION_SERVICE_TIMEOUT", 10)) * time.Second,
			APIKey:  getEnvString("NOTIFICATION_SERVICE_API_KEY", ""),
		},
		Tax: TaxConfig{
			Rate:      getEnvFloat("TAX_RATE", 0.19),
			StampDuty: getEnvFloat("TAX_STAMP_DUTY", 1.0),
			Currency:  getEnvString("BILLING_CURRENCY", "TND"),
		},
		Features: FeatureFlags{
			EnableInvoiceCaching: getEnvBool("FEATURE_INVOICE_CACHING", true),
			EnableInvoiceEvents:  getEnvBool("FEATURE_INVOICE_EVENTS", true),
			EnableOrderConsumer:  getEnvBool("FEATURE_ORDER_CONSUMER", true),
			EnableNotifications:  getEnvBool("FEATURE_NOTIFICATIONS", true),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
		},
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if math.IsNaN(c.Tax.Rate) || math.IsInf(c.Tax.Rate, 0) {
		return fmt.Errorf("TAX_RATE must be a finite number, got %v", c.Tax.Rate)
	}
	if math.IsNaN(c.Tax.StampDuty) || math.IsInf(c.Tax.StampDuty, 0) {
		return fmt.Errorf("TAX_STAMP_DUTY must be a finite number, got %v", c.Tax.StampDuty)
	}
	if c.Tax.Rate < 0 {
		return fmt.Errorf("TAX_RATE must not be negative, got %v", c.Tax.Rate)
	}
	if c.Tax.StampDuty < 0 {
		return fmt.Errorf("TAX_STAMP_DUTY must not be negative, got %v", c.Tax.StampDuty)
	}
	if c.Tax.Currency == "" {
		return fmt.Errorf("BILLING_CURRENCY is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be positive, got %d", c.Server.Port)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
