package main

import (
	"context"
	"log"
	"os"

	"attendancebot/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Database.Enabled() {
		log.Fatal("DB_HOST is not set, nothing to migrate")
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.ConnString())
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	migration, err := os.ReadFile(cfg.Database.MigrationPath)
	if err != nil {
		log.Fatalf("Error reading migration file: %v", err)
	}

	if _, err := pool.Exec(context.Background(), string(migration)); err != nil {
		log.Fatalf("Error executing migration: %v", err)
	}

	log.Printf("Migration %s completed successfully", cfg.Database.MigrationPath)
}
