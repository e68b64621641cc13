// Package config содержит логику чтения конфигурации сервиса членства.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса членства.
// Секреты интеграций опциональны: при их отсутствии соответствующие
// обработчики отвечают ошибкой config_missing, сервис не падает.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	JWTSecret    string   `env:"JWT_SECRET"`
	AdminInitKey string   `env:"ADMIN_INIT_KEY"`
	AdminEmails  []string `env:"ADMIN_EMAILS" envSeparator:","`

	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	ReportTZ      string `env:"REPORT_TZ" envDefault:"Africa/Freetown"`

	StorageBucket    string `env:"STORAGE_BUCKET"`
	StorageRegion    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	StorageEndpoint  string `env:"STORAGE_ENDPOINT"`
	StorageAccessKey string `env:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `env:"STORAGE_SECRET_KEY"`

	CheckoutBaseURL       string `env:"CHECKOUT_BASE_URL"`
	CheckoutSecretKey     string `env:"CHECKOUT_SECRET_KEY"`
	CheckoutPriceDues     string `env:"CHECKOUT_PRICE_DUES"`
	CheckoutPriceDonation string `env:"CHECKOUT_PRICE_DONATION"`

	MailAPIURL  string `env:"MAIL_API_URL"`
	MailAPIKey  string `env:"MAIL_API_KEY"`
	MailFrom    string `env:"MAIL_FROM" envDefault:"no-reply@mdpu.org"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
