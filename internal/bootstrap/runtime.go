// Package bootstrap wires the process-level dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipRedis leaves the Redis client nil, for one-shot tools.
	SkipRedis bool
}

// demo sizes used when DEMO_SEED is on and no fixtures are given.
const (
	demoUsers = 5
	demoPosts = 20
)

// InitRuntime connects to the database, brings the schema up to date and connects to
// Redis. A nil Redis client means Redis is unreachable and the server runs without it.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := seedDemo(ctx, cfg, db); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to seed demo content: %w", err)
	}

	if opts.SkipRedis {
		return db, nil, nil
	}
	return db, cache.InitRedis(ctx, cfg.RedisURL), nil
}

// seedDemo fills an empty development database. It never touches a database that
// already has users.
func seedDemo(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || !cfg.DemoSeed {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") {
		middleware.Logger.WarnContext(ctx, "DEMO_SEED ignored outside development", slog.String("env", cfg.Env))
		return nil
	}

	var users int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}

	opts := seed.Options{Fixtures: cfg.DemoFixtures, FastHash: true}
	if opts.Fixtures == "" {
		opts.Users = demoUsers
		opts.Posts = demoPosts
	}
	res, err := seed.NewSeeder(db, opts).Run(ctx)
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "Demo content seeded",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
	)
	return nil
}
