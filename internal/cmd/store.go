package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/mou514/FinanceMate-sub000/internal/config"
	"github.com/mou514/FinanceMate-sub000/internal/core/store"
)

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx, viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore opens and migrates the configured database.
func openStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return db, cfg, nil
}
