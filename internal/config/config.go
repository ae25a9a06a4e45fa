package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string

	DBConfig struct {
		DBHost     string
		DBPort     string
		DBUser     string
		DBPassword string
		DBName     string
		DBSSLMode  string
	}

	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	KafkaURL              string
	KafkaOrderStatusTopic string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration

	CardGatewayBaseURL       string
	CardGatewaySecretKey     string
	CardGatewayWebhookSecret string

	BankWebhookAPIKey string
}

func LoadConfig() (*Config, error) {
	godotenv.Load()

	cfg := &Config{}

	cfg.Env = getEnvOrDefault("APP_ENV", "development")

	cfg.DBConfig.DBHost = getEnvOrDefault("SETTLEMENT_DB_HOST", "localhost")
	cfg.DBConfig.DBPort = getEnvOrDefault("SETTLEMENT_DB_PORT", "5432")
	cfg.DBConfig.DBUser = getEnvOrDefault("SETTLEMENT_DB_USER", "postgres")
	cfg.DBConfig.DBPassword = getEnvOrDefault("SETTLEMENT_DB_PASSWORD", "postgres")
	cfg.DBConfig.DBName = getEnvOrDefault("SETTLEMENT_DB_NAME", "digital_world")
	cfg.DBConfig.DBSSLMode = getEnvOrDefault("SETTLEMENT_DB_SSLMODE", "disable")

	cfg.ServerPort = getEnvOrDefault("SERVER_PORT", "8082")

	readTimeout, err := getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.ServerReadTimeout = readTimeout

	writeTimeout, err := getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.ServerWriteTimeout = writeTimeout

	cfg.KafkaURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaOrderStatusTopic = getEnvOrDefault("KAFKA_ORDER_STATUS_TOPIC", "order_status_updates")

	interval, err := getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.OutboxPollInterval = interval

	timeout, err := getEnvDuration("OUTBOX_POLL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.OutboxPollTimeout = timeout

	cfg.CardGatewayBaseURL = getEnvOrDefault("CARD_GATEWAY_BASE_URL", "https://api.cardpay.example.com")
	cfg.CardGatewaySecretKey = os.Getenv("CARD_GATEWAY_SECRET_KEY")
	cfg.CardGatewayWebhookSecret = os.Getenv("CARD_GATEWAY_WEBHOOK_SECRET")

	cfg.BankWebhookAPIKey = os.Getenv("BANK_WEBHOOK_API_KEY")

	return cfg, nil
}

// IsProduction gates the bank-webhook auth bypass: the API key check may be
// skipped only outside production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
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

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("%s:%s@%s:%s/%s?sslmode=%s",
		c.DBConfig.DBUser, c.DBConfig.DBPassword, c.DBConfig.DBHost, c.DBConfig.DBPort, c.DBConfig.DBName, c.DBConfig.DBSSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return []string{c.KafkaURL}
}
