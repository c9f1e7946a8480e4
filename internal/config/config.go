// Package config содержит логику чтения конфигурации сервиса синхронизации промокодов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ProviderApp содержит OAuth-учётные данные приложения для одной POS-системы.
type ProviderApp struct {
	ClientID     string
	ClientSecret string
}

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`

	SquareApplicationID     string `env:"SQUARE_APPLICATION_ID"`
	SquareApplicationSecret string `env:"SQUARE_APPLICATION_SECRET"`
	CloverAppID             string `env:"CLOVER_APP_ID"`
	CloverAppSecret         string `env:"CLOVER_APP_SECRET"`
	LightspeedClientID      string `env:"LIGHTSPEED_CLIENT_ID"`
	LightspeedClientSecret  string `env:"LIGHTSPEED_CLIENT_SECRET"`

	// Переопределения адресов провайдеров, используются в основном в тестах.
	SquareBaseURL        string `env:"SQUARE_BASE_URL"`
	CloverOAuthBaseURL   string `env:"CLOVER_OAUTH_BASE_URL"`
	CloverAPIBaseURL     string `env:"CLOVER_API_BASE_URL"`
	LightspeedCloudURL   string `env:"LIGHTSPEED_CLOUD_BASE_URL"`
	LightspeedAPIBaseURL string `env:"LIGHTSPEED_API_BASE_URL"`
}

// Square возвращает учётные данные приложения Square.
func (c *Config) Square() ProviderApp {
	return ProviderApp{ClientID: c.SquareApplicationID, ClientSecret: c.SquareApplicationSecret}
}

// Clover возвращает учётные данные приложения Clover.
func (c *Config) Clover() ProviderApp {
	return ProviderApp{ClientID: c.CloverAppID, ClientSecret: c.CloverAppSecret}
}

// Lightspeed возвращает учётные данные приложения Lightspeed.
func (c *Config) Lightspeed() ProviderApp {
	return ProviderApp{ClientID: c.LightspeedClientID, ClientSecret: c.LightspeedClientSecret}
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "JWT signing secret of the identity provider")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
