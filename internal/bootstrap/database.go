package bootstrap

import (
	"context"
	"fmt"

	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/store"

	"github.com/rs/zerolog/log"
)

// initializeDatabase opens the credential store and migrates its schema
func initializeDatabase(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info().Str("driver", cfg.DatabaseDriver).Msg("Database initialized")
	return db, nil
}
