// Command migrate runs schema operations for the messaging database.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"hearth/internal/config"
	"hearth/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := db.AutoMigrate(database.Models()...); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}
		log.Println("migrations applied")
	case "status":
		migrator := db.Migrator()
		for _, model := range database.Models() {
			state := "missing"
			if migrator.HasTable(model) {
				state = "present"
			}
			log.Printf("%T: %s", model, state)
		}
	default:
		return usage()
	}

	return nil
}
