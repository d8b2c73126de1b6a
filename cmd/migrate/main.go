package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pulse-chat/config"
	"pulse-chat/pkg/database"

	"gorm.io/gorm"
)

const usage = `
Pulse Chat - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Create or update the tables
  status      Show database connection status and row counts
  seed-dev    Seed with development users and conversations
  truncate    Truncate all tables (DANGEROUS)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate seed-dev
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp(db)
	case "status":
		showStatus(db)
	case "seed-dev":
		runSeedDevelopment(db)
	case "truncate":
		runTruncate(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("Running migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func showStatus(db *gorm.DB) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := database.HealthCheck(ctx); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	tables := []string{"users", "conversations", "participants", "messages", "message_receipts", "calls"}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			log.Printf("Table %-20s does not exist", table)
			continue
		}
		var count int64
		db.Table(table).Count(&count)
		log.Printf("Table %-20s exists (%d rows)", table, count)
	}
}

func runSeedDevelopment(db *gorm.DB) {
	log.Println("Seeding database (development mode)...")

	result, err := database.SeedDevelopment(db)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seed Summary:")
	for _, u := range result.Users {
		log.Printf("   - user %s: %s", u.Name(), u.ID)
	}
	log.Printf("   - Conversations: %d", len(result.Conversations))
}

func runTruncate(db *gorm.DB) {
	log.Println("WARNING: This will TRUNCATE all tables!")
	if err := database.TruncateAll(db); err != nil {
		log.Fatalf("Truncate failed: %v", err)
	}
	log.Println("All tables truncated")
}
