// Package migration applies the engine schema with goose, golang-migrate or
// GORM auto-migration.
package migration

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/payops/payops/internal/shared/config"
	"github.com/payops/payops/internal/shared/logger"
)

// Manager handles database migrations with different strategies
type Manager struct {
	strategy Strategy
	logger   logger.Interface
}

// NewManager picks the strategy named in cfg. Unknown names are rejected.
func NewManager(cfg config.MigrationConfig, log logger.Interface) (*Manager, error) {
	var strategy Strategy
	switch cfg.Strategy {
	case StrategyGoose, "":
		strategy = NewGooseStrategy(cfg.ScriptsPath, log)
	case StrategyGolangMigrate:
		strategy = NewGolangMigrateStrategy(cfg.ScriptsPath, log)
	case StrategyAutoMigrate:
		strategy = NewAutoMigrateStrategy(log)
	default:
		return nil, fmt.Errorf("unknown migration strategy %q", cfg.Strategy)
	}
	return NewManagerWithStrategy(strategy, log), nil
}

func NewManagerWithStrategy(strategy Strategy, log logger.Interface) *Manager {
	return &Manager{
		strategy: strategy,
		logger:   log.With("component", "migration.manager"),
	}
}

// Migrate executes the configured migration strategy
func (m *Manager) Migrate(db *gorm.DB) error {
	m.logger.Infow("starting database migration", "strategy", m.strategy.GetName())

	if err := m.strategy.Migrate(db); err != nil {
		m.logger.Errorw("migration failed", "strategy", m.strategy.GetName(), "error", err)
		return fmt.Errorf("migration failed with strategy %s: %w", m.strategy.GetName(), err)
	}

	m.logger.Infow("database migration completed successfully", "strategy", m.strategy.GetName())
	return nil
}

func (m *Manager) Rollback(db *gorm.DB, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	return m.strategy.MigrateDown(db, steps)
}

func (m *Manager) Version(db *gorm.DB) (int64, error) {
	return m.strategy.Version(db)
}

func (m *Manager) GetStrategy() Strategy {
	return m.strategy
}

// GetStrategyInfo returns information about the current strategy
func (m *Manager) GetStrategyInfo() map[string]string {
	return map[string]string{
		"name":        m.strategy.GetName(),
		"description": getStrategyDescription(m.strategy.GetName()),
	}
}

func getStrategyDescription(strategyName string) string {
	switch strategyName {
	case StrategyAutoMigrate:
		return "GORM AutoMigrate - schema derived from the persistence models"
	case StrategyGolangMigrate:
		return "golang-migrate - versioned up/down SQL scripts"
	case StrategyGoose:
		return "goose - versioned SQL scripts with Up/Down sections"
	default:
		return "Unknown migration strategy"
	}
}
