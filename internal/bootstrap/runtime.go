// Package bootstrap establishes runtime dependencies (database, Redis) and
// development conveniences before the server starts.
package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"hearth/internal/cache"
	"hearth/internal/config"
	"hearth/internal/database"
	"hearth/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime connects to the database and Redis and runs development-only
// bootstrap steps.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// May result in a nil client if Redis is unreachable; the app degrades
	// rather than fails.
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevUser(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development user: %w", err)
	}

	return db, r, nil
}

// ensureDevUser creates a well-known directory user in development so the API
// is exercisable immediately after first start.
func ensureDevUser(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var existing models.User
		findErr := tx.Where("username = ?", "hearth_dev").First(&existing).Error
		switch {
		case findErr == nil:
			return nil
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			hashed, err := bcrypt.GenerateFromPassword([]byte("devpassword"), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash dev password: %w", err)
			}
			user := models.User{
				Username:     "hearth_dev",
				DisplayName:  "Hearth Developer",
				Email:        "dev@hearth.local",
				PasswordHash: string(hashed),
				IsActive:     true,
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("create dev user: %w", err)
			}
			log.Printf("bootstrapped development user %q (id=%d)", user.Username, user.ID)
			return nil
		default:
			if models.IsSchemaMissingError(findErr) {
				return nil
			}
			return findErr
		}
	})
}
