// Command createadmin bootstraps an administrator account for the admin API.
package main

import (
	"context"
	"flag"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/cargohold/service/internal/admin"
	"github.com/cargohold/service/internal/config"
	"github.com/cargohold/service/internal/db"
)

func main() {
	username := flag.String("username", "", "admin username")
	password := flag.String("password", "", "admin password")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -username and -password are required")
	}

	cfg := config.Load()

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	repo := admin.NewRepository(pool)
	u, err := repo.CreateUser(context.Background(), *username, string(hash))
	if err != nil {
		log.Fatalf("create admin user: %v", err)
	}

	log.Printf("admin user %q created (id=%s)", u.Username, u.ID)
}
