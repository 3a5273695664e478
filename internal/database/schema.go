package database

import (
	"context"
	"fmt"
	"log/slog"

	"quill/internal/config"
	"quill/internal/middleware"

	"gorm.io/gorm"
)

// SchemaStatus describes what ApplySchema would do for the current configuration.
type SchemaStatus struct {
	Driver            string
	Environment       string
	WillRunSQL        bool
	AppliedVersions   []int
	PendingMigrations []Migration
}

// usesSQLMigrations reports whether the embedded Postgres migrations manage the schema.
// SQLite databases are built from the models with AutoMigrate.
func usesSQLMigrations(cfg *config.Config) bool {
	return cfg.DBDriver != "sqlite"
}

// ApplySchema brings the database schema up to date.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if usesSQLMigrations(cfg) {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		return nil
	}

	middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate", slog.String("driver", cfg.DBDriver), slog.String("env", cfg.Env))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports applied and pending migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	status := &SchemaStatus{
		Driver:      cfg.DBDriver,
		Environment: cfg.Env,
		WillRunSQL:  usesSQLMigrations(cfg),
	}
	if !status.WillRunSQL {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}
	for _, m := range GetMigrations() {
		if !appliedSet[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}

	return status, nil
}
