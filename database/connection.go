package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/medlane-ng/medlane-backend/internal/config"
)

var DB *gorm.DB

// Connect opens the Postgres connection described by cfg. Startup is the one
// place we block on the database, so connection attempts are retried until
// cfg.ConnectTimeout elapses.
func Connect(cfg config.DatabaseConfig) error {
	dsn := cfg.DSN()
	if cfg.InstanceConnectionName != "" {
		log.Printf("Connecting to Cloud SQL via socket: %s", cfg.InstanceConnectionName)
	} else {
		log.Printf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port)
	}

	deadline := time.Now().Add(cfg.ConnectTimeout)
	var err error
	for {
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			log.Println("✅ Database connected successfully!")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database connect timed out after %s: %w", cfg.ConnectTimeout, err)
		}
		log.Printf("Database not ready, retrying in 3s: %v", err)
		time.Sleep(3 * time.Second)
	}
}
