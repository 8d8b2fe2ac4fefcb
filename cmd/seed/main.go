// seed inserts development sample data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the dev game already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gameboard/internal/config"
	"gameboard/internal/db"
	gamedomain "gameboard/internal/game/domain"
	gamerepo "gameboard/internal/game/repository"
)

const (
	devGameID    = "dev-game-001"
	devAccountID = "dev-account-001"
	devGameName  = "Space Blaster Dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	games := gamerepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := games.GetByID(ctx, devGameID)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev game exists). Skipping.")
		os.Exit(0)
	}

	if err := games.Create(ctx, &gamedomain.Game{
		ID:        devGameID,
		AccountID: devAccountID,
		Name:      devGameName,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Fatalf("create dev game: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev game: %s (%s)\n", devGameID, devGameName)
}
