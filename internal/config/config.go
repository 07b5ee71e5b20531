// Package config содержит логику чтения конфигурации сервиса sipsaver.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса sipsaver.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	SessionSecret string `env:"SESSION_SECRET"`
}

// Parse считывает конфигурацию из .env-файла, переменных окружения
// и флагов командной строки. Переменные окружения имеют приоритет.
func Parse() (*Config, error) {
	// .env не обязателен: в проде переменные приходят из окружения.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envSessionSecret := cfg.SessionSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.SessionSecret, "s", "", "secret key for session cookies")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envSessionSecret != "" {
		cfg.SessionSecret = envSessionSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
