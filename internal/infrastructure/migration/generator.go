package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/payops/payops/internal/shared/logger"
)

var migrationName = regexp.MustCompile(`^[a-z0-9_]+$`)

// Generator creates empty migration scripts for both script layouts.
type Generator struct {
	scriptsPath string
	logger      logger.Interface
	now         func() time.Time
}

func NewGenerator(scriptsPath string, log logger.Interface) *Generator {
	return &Generator{
		scriptsPath: scriptsPath,
		logger:      log.With("component", "migration.generator"),
		now:         time.Now,
	}
}

// CreateMigration writes <ts>_<name>.sql under goose/ and the matching
// .up.sql/.down.sql pair under migrate/. It returns the created paths.
func (g *Generator) CreateMigration(name string) ([]string, error) {
	if !migrationName.MatchString(name) {
		return nil, fmt.Errorf("migration name must match %s", migrationName)
	}
	timestamp := g.now().UTC().Format("20060102150405")
	created := g.now().UTC().Format("2006-01-02 15:04:05")

	files := map[string]string{
		filepath.Join(g.scriptsPath, "goose", fmt.Sprintf("%s_%s.sql", timestamp, name)): fmt.Sprintf(
			"-- Migration: %s\n-- Created: %s\n\n-- +goose Up\n\n-- +goose Down\n", name, created),
		filepath.Join(g.scriptsPath, "migrate", fmt.Sprintf("%s_%s.up.sql", timestamp, name)): fmt.Sprintf(
			"-- Migration: %s\n-- Created: %s\n", name, created),
		filepath.Join(g.scriptsPath, "migrate", fmt.Sprintf("%s_%s.down.sql", timestamp, name)): fmt.Sprintf(
			"-- Rollback Migration: %s\n-- Created: %s\n", name, created),
	}

	paths := make([]string, 0, len(files))
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create scripts directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	g.logger.Infow("migration files created successfully", "name", name, "files", len(paths))
	return paths, nil
}
