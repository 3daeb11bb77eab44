package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/fixora/tollgate/infrastructure/adapter/memory"
	"github.com/fixora/tollgate/infrastructure/adapter/postgres"
)

// Writes the built-in demo registry into gateway_users so a postgres-backed
// gateway starts with the same clients as the static one.
func main() {
	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping db: %v", err)
	}

	src := postgres.NewUserSourceAdapter(db)
	for _, u := range memory.SeedUsers() {
		if err := src.Upsert(ctx, u); err != nil {
			log.Fatalf("failed to seed user: %v", err)
		}
		fmt.Printf("Seeded user: id=%s trust_level=%d\n", u.ID, u.TrustLevel)
	}
}
