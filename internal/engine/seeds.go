package engine

// seeds.go - CSV seed data loading

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// loadSeedsOnce loads seeds before the first run of the engine.
func (e *Engine) loadSeedsOnce(ctx context.Context) error {
	if e.seedsLoaded {
		return nil
	}
	if err := e.LoadSeeds(ctx); err != nil {
		return err
	}
	e.seedsLoaded = true
	return nil
}

// LoadSeeds loads all CSV files from the seeds directory into the database.
// Each file becomes a table named after the file.
func (e *Engine) LoadSeeds(ctx context.Context) error {
	if e.seedsDir == "" {
		return nil
	}

	e.logger.Debug("loading seeds", "seeds_dir", e.seedsDir)

	// Ensure database is connected before loading seeds
	if err := e.ensureDBConnected(ctx); err != nil {
		return err
	}

	entries, err := os.ReadDir(e.seedsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No seeds directory is OK
		}
		return fmt.Errorf("failed to read seeds directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		tableName := strings.TrimSuffix(entry.Name(), ".csv")
		csvPath := filepath.Join(e.seedsDir, entry.Name())

		e.logger.Debug("loading seed file", "table", tableName, "path", csvPath)

		if err := e.db.LoadCSV(ctx, tableName, csvPath); err != nil {
			return fmt.Errorf("failed to load seed %s: %w", entry.Name(), err)
		}
		loaded++
	}

	e.logger.Debug("seeds loaded", "count", loaded)

	return nil
}
