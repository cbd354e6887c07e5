package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	HTTPPort    int
	StoreDriver string

	DBConfig struct {
		DBHost     string `env:"STOREFRONT_DB_HOST"`
		DBPort     string `env:"STOREFRONT_DB_PORT"`
		DBUser     string `env:"STOREFRONT_DB_USER"`
		DBPassword string `env:"STOREFRONT_DB_PASSWORD"`
		DBName     string `env:"STOREFRONT_DB_NAME"`
		DBSSLMode  string `env:"STOREFRONT_DB_SSLMODE"`
	}
	MigrationsPath string `env:"STOREFRONT_MIGRATIONS_PATH"`

	KafkaEnabled                  bool   `env:"KAFKA_ENABLED"`
	KafkaURL                      string `env:"KAFKA_BROKER_URL"`
	KafkaPaymentConfirmationTopic string `env:"KAFKA_PAYMENT_CONFIRMATION_TOPIC"`
	KafkaNotificationTopic        string `env:"KAFKA_NOTIFICATION_TOPIC"`
	KafkaConsumerGroup            string `env:"KAFKA_CONSUMER_GROUP"`
	KafkaDeadLetterTopic          string `env:"KAFKA_DEAD_LETTER_TOPIC"`
	KafkaConsumerMaxAttempts      int    `env:"KAFKA_CONSUMER_MAX_ATTEMPTS"`

	GatewayBaseURL   string        `env:"GATEWAY_BASE_URL"`
	GatewayKeyID     string        `env:"GATEWAY_KEY_ID"`
	GatewayKeySecret string        `env:"GATEWAY_KEY_SECRET"`
	GatewayTimeout   time.Duration `env:"GATEWAY_TIMEOUT"`
	GatewayMockMode  bool          `env:"GATEWAY_MOCK_MODE"`

	HomeCurrency string `env:"HOME_CURRENCY"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL"`
	ReconcileLookback time.Duration `env:"RECONCILE_LOOKBACK"`
	ReconcileTimeout  time.Duration `env:"RECONCILE_TIMEOUT"`

	NotifyDryRun       bool     `env:"NOTIFY_DRY_RUN"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	var err error

	if cfg.HTTPPort, err = getEnvAsInt("STOREFRONT_HTTP_PORT", 8080); err != nil {
		return nil, err
	}
	cfg.StoreDriver = getEnvOrDefault("STOREFRONT_STORE_DRIVER", StoreDriverPostgres)

	cfg.DBConfig.DBHost = getEnvOrDefault("STOREFRONT_DB_HOST", "localhost")
	cfg.DBConfig.DBPort = getEnvOrDefault("STOREFRONT_DB_PORT", "5432")
	cfg.DBConfig.DBUser = getEnvOrDefault("STOREFRONT_DB_USER", "postgres")
	cfg.DBConfig.DBPassword = getEnvOrDefault("STOREFRONT_DB_PASSWORD", "postgres")
	cfg.DBConfig.DBName = getEnvOrDefault("STOREFRONT_DB_NAME", "storefront_db")
	cfg.DBConfig.DBSSLMode = getEnvOrDefault("STOREFRONT_DB_SSLMODE", "disable")
	cfg.MigrationsPath = getEnvOrDefault("STOREFRONT_MIGRATIONS_PATH", "file:///app/migrations")

	if cfg.KafkaEnabled, err = getEnvAsBool("KAFKA_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.KafkaURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaPaymentConfirmationTopic = getEnvOrDefault("KAFKA_PAYMENT_CONFIRMATION_TOPIC", "payment_confirmations")
	cfg.KafkaNotificationTopic = getEnvOrDefault("KAFKA_NOTIFICATION_TOPIC", "customer_notifications")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "storefront-group")
	cfg.KafkaDeadLetterTopic = getEnvOrDefault("KAFKA_DEAD_LETTER_TOPIC", "payment_confirmations_dlq")
	if cfg.KafkaConsumerMaxAttempts, err = getEnvAsInt("KAFKA_CONSUMER_MAX_ATTEMPTS", 8); err != nil {
		return nil, err
	}

	cfg.GatewayBaseURL = getEnvOrDefault("GATEWAY_BASE_URL", "https://api.razorpay.com/v1")
	cfg.GatewayKeyID = getEnvOrDefault("GATEWAY_KEY_ID", "")
	cfg.GatewayKeySecret = getEnvOrDefault("GATEWAY_KEY_SECRET", "")
	if cfg.GatewayTimeout, err = getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.GatewayMockMode, err = getEnvAsBool("GATEWAY_MOCK_MODE", false); err != nil {
		return nil, err
	}

	cfg.HomeCurrency = strings.ToUpper(getEnvOrDefault("HOME_CURRENCY", "INR"))

	if cfg.ReconcileInterval, err = getEnvAsDuration("RECONCILE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReconcileLookback, err = getEnvAsDuration("RECONCILE_LOOKBACK", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ReconcileTimeout, err = getEnvAsDuration("RECONCILE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.NotifyDryRun, err = getEnvAsBool("NOTIFY_DRY_RUN", true); err != nil {
		return nil, err
	}
	cfg.CORSAllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})

	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid STOREFRONT_HTTP_PORT: %d", c.HTTPPort))
	}
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		errs = append(errs, fmt.Errorf("unknown STOREFRONT_STORE_DRIVER %q", c.StoreDriver))
	}
	if c.KafkaEnabled && c.KafkaURL == "" {
		errs = append(errs, errors.New("KAFKA_BROKER_URL is required when KAFKA_ENABLED is set"))
	}
	if !c.GatewayMockMode && (c.GatewayKeyID == "" || c.GatewayKeySecret == "") {
		errs = append(errs, errors.New("GATEWAY_KEY_ID and GATEWAY_KEY_SECRET are required unless GATEWAY_MOCK_MODE is set"))
	}
	if c.KafkaEnabled && c.KafkaConsumerMaxAttempts <= 0 {
		errs = append(errs, errors.New("KAFKA_CONSUMER_MAX_ATTEMPTS must be positive"))
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be positive"))
	}
	if len(c.HomeCurrency) != 3 {
		errs = append(errs, fmt.Errorf("HOME_CURRENCY must be a 3-letter code, got %q", c.HomeCurrency))
	}
	if c.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBConfig.DBUser, c.DBConfig.DBPassword, c.DBConfig.DBHost, c.DBConfig.DBPort, c.DBConfig.DBName, c.DBConfig.DBSSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaURL, ",")
}
