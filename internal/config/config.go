package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	DSN           string
	HTTPPort      string
	MigrationsDir string

	KafkaBrokers []string
	KafkaTopic   string

	PushURL     string
	PushTimeout time.Duration

	ConfirmDelay  time.Duration
	SweepInterval time.Duration
	CancelWindow  time.Duration
}

func LoadConfig() *Config {
	brokersStr := getEnv("KAFKA_BROKERS", "localhost:9092")
	return &Config{
		DSN:           getEnv("APP_DSN", "host=localhost user=postgres password=postgres dbname=storefront sslmode=disable"),
		HTTPPort:      getEnv("APP_PORT", "9000"),
		MigrationsDir: getEnv("APP_MIGRATIONS", "migrations"),
		KafkaBrokers:  strings.Split(brokersStr, ","),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "order-events"),
		PushURL:       getEnv("PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		PushTimeout:   getDuration("PUSH_TIMEOUT", 5*time.Second),
		ConfirmDelay:  getDuration("ORDER_CONFIRM_DELAY", 30*time.Minute),
		SweepInterval: getDuration("ORDER_SWEEP_INTERVAL", time.Minute),
		CancelWindow:  getDuration("ORDER_CANCEL_WINDOW", 30*time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.HTTPPort)
}
