package main

import (
	"log"
	"os"

	"chat-lens-be/internal/model"
	"chat-lens-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 3. Extensions
	log.Println("Step 1: Setting up extensions...")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Printf("Warn: Failed to create extension: %v. Continuing...", err)
	}

	// 4. Transcript archive
	log.Println("Step 2: Migrating chat_turns...")
	if err := database.Migrate(db, &model.ChatTurn{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Views
	log.Println("Step 3: Creating views...")
	postMigrationSQL := []string{
		`CREATE OR REPLACE VIEW conversation_summaries AS
		 SELECT conversation_id, COUNT(*) AS turn_count, MIN(created_at) AS started_at, MAX(created_at) AS last_turn_at
		 FROM chat_turns
		 GROUP BY conversation_id;`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Archive migration completed.")
}
