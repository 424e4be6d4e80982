package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/fdg312/meal-hub/internal/config"
	"github.com/fdg312/meal-hub/internal/dbmigrate"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: go run ./cmd/migrate [up|status|down] [dir]")
	}

	command := os.Args[1]
	switch command {
	case "up", "status", "down":
	default:
		log.Fatalf("unsupported command %q (allowed: up, status, down)", command)
	}

	// Without an explicit dir the migrations embedded in the binary are used
	dir := dbmigrate.DefaultMigrationsDir
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	cfg := config.Load()
	dbURL, source, warning, err := dbmigrate.SelectDatabaseURL(cfg, false)
	if err != nil {
		log.Fatal(err)
	}

	if warning != "" {
		log.Printf("WARN migrate: %s", warning)
	}
	log.Printf("migrate: command=%s using=%s", command, source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dbmigrate.Run(ctx, command, dbURL, dir); err != nil {
		log.Fatal(err)
	}

	log.Printf("migrate: %s completed successfully", command)
}
