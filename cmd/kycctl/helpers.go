package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"kyc/internal/app"
	"kyc/internal/platform/config"
)

// loadServerConfig reads the server environment and applies kycctl overrides
// from flags, the config file, or KYC_* variables.
func loadServerConfig() (config.Server, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Server{}, err
	}
	if v := viper.GetString("database_url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := viper.GetString("redis_url"); v != "" {
		cfg.Redis.URL = v
	}
	if v := viper.GetString("jwt_signing_key"); v != "" {
		cfg.JWTSigningKey = v
	}
	return cfg, nil
}

// openServices connects to Postgres and builds the services. Commands that
// write require a database; in-memory state would vanish on exit.
func openServices(ctx context.Context) (*app.Stores, *app.Services, error) {
	cfg, err := loadServerConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("a database is required: set --database-url, KYC_DATABASE_URL or DATABASE_URL")
	}

	log := slog.Default()
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	services, err := app.NewServices(ctx, cfg, stores, prometheus.NewRegistry(), log)
	if err != nil {
		_ = stores.Close()
		return nil, nil, err
	}
	return stores, services, nil
}

func closeAll(stores *app.Stores, services *app.Services) {
	if services != nil {
		_ = services.Close()
	}
	if stores != nil {
		_ = stores.Close()
	}
}
