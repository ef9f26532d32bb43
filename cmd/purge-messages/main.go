// Command purge-messages permanently removes soft-deleted group messages
// older than the configured retention window. Run it from cron.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"social-service/internal/config"
	"social-service/internal/db"
	"social-service/internal/repositories"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	days := flag.Int("days", cfg.MessageRetentionDays, "retention in days for deleted messages")
	flag.Parse()
	if *days < 0 {
		log.Fatalf("days must not be negative, got %d", *days)
	}

	database, err := db.ConnectPostgres(cfg.PostgresDSN, 2)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -*days)
	removed, err := repositories.NewMessageRepo(database).CleanupDeleted(ctx, cutoff)
	if err != nil {
		log.Fatalf("purge failed: %v", err)
	}
	log.Printf("purged deleted messages count=%d older_than=%s", removed, cutoff.Format(time.RFC3339))
}
