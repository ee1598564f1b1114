package migration

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/infrastructure/database"
	"github.com/payops/payops/internal/shared/config"
	"github.com/payops/payops/internal/shared/constants"
	"github.com/payops/payops/internal/shared/logger"
)

func TestNewManager_SelectsStrategy(t *testing.T) {
	tests := []struct {
		strategy string
		want     string
		wantErr  bool
	}{
		{"", StrategyGoose, false},
		{StrategyGoose, StrategyGoose, false},
		{StrategyGolangMigrate, StrategyGolangMigrate, false},
		{StrategyAutoMigrate, StrategyAutoMigrate, false},
		{"flyway", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			m, err := NewManager(config.MigrationConfig{Strategy: tt.strategy, ScriptsPath: "scripts"}, logger.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.GetStrategy().GetName())
			assert.NotEmpty(t, m.GetStrategyInfo()["description"])
		})
	}
}

func TestAutoMigrate_CreatesEngineTables(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)

	m := NewManagerWithStrategy(NewAutoMigrateStrategy(logger.NewNop()), logger.NewNop())
	require.NoError(t, m.Migrate(db))

	for _, table := range []string{
		constants.TableRetrySchedules, constants.TableDunningRuns, constants.TableSideEffects,
		constants.TableAuditEntries, constants.TablePaymentLinks,
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.Error(t, m.Rollback(db, 1))
	assert.Error(t, m.Rollback(db, 0))
}

func TestGenerator_WritesBothLayouts(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, logger.NewNop())
	g.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	paths, err := g.CreateMigration("add_alert_ack")
	require.NoError(t, err)
	sort.Strings(paths)
	assert.Equal(t, []string{
		filepath.Join(dir, "goose", "20260302090000_add_alert_ack.sql"),
		filepath.Join(dir, "migrate", "20260302090000_add_alert_ack.down.sql"),
		filepath.Join(dir, "migrate", "20260302090000_add_alert_ack.up.sql"),
	}, paths)

	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- +goose Up")

	_, err = g.CreateMigration("Bad Name")
	assert.Error(t, err)
}

func TestScripts_BothLayoutsShipTheSameVersion(t *testing.T) {
	goose, err := filepath.Glob(filepath.Join("scripts", "goose", "*.sql"))
	require.NoError(t, err)
	up, err := filepath.Glob(filepath.Join("scripts", "migrate", "*.up.sql"))
	require.NoError(t, err)
	down, err := filepath.Glob(filepath.Join("scripts", "migrate", "*.down.sql"))
	require.NoError(t, err)
	assert.Len(t, goose, 1)
	assert.Len(t, up, len(goose))
	assert.Len(t, down, len(goose))
}
