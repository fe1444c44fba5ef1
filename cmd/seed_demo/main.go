// Command seed_demo creates the ST-MARIE 14000 demo establishment with one
// account per role and two classroom layouts. Running it again resets the
// demo passwords and leaves existing rooms alone.
// Usage: go run ./cmd/seed_demo [-db path/to/espace-classe.db]
package main

import (
	"context"
	"flag"
	"log"

	"github.com/mrlokans/espace-classe/internal/config"
	"github.com/mrlokans/espace-classe/internal/database"
	"github.com/mrlokans/espace-classe/internal/demo"
)

func main() {
	cfg := config.NewConfig()

	driver := flag.String("driver", string(cfg.Database.Driver), "database driver (sqlite or postgres)")
	flag.StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "path to the sqlite database file")
	flag.StringVar(&cfg.Database.DSN, "dsn", cfg.Database.DSN, "postgres connection string")
	cost := flag.Int("cost", cfg.Auth.BcryptCost, "bcrypt cost for the demo passwords")
	flag.Parse()
	cfg.Database.Driver = config.DatabaseDriver(*driver)

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	result, err := demo.Seed(context.Background(), db.DB, *cost)
	if err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}

	log.Printf("Establishment: %s (%s)", result.Establishment.Name, result.Establishment.Code)
	for _, account := range demo.Accounts {
		log.Printf("  %-13s %-14s %s", account.Role, account.Username, account.Password)
	}
	log.Println("Demo data seeded successfully!")
}
