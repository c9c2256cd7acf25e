// Package main provides a CLI tool for running database migrations.
package main

import (
	"flag"
	"log"

	"github.com/estate-sync/internal/config"
	"github.com/estate-sync/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down")
		path   = flag.String("path", "migrations", "Path to migration files")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	databaseURL := cfg.Database.Postgres.PostgresURL()

	switch *action {
	case "up":
		log.Println("Running migrations...")
		if err := storage.RunMigrations(databaseURL, *path); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	case "down":
		log.Println("Rolling back last migration...")
		if err := storage.RollbackMigrations(databaseURL, *path); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Rollback completed successfully")
	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}
