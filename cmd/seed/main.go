// Command seed populates the messaging database with demo data.
package main

import (
	"flag"
	"log"

	"hearth/internal/config"
	"hearth/internal/database"
	"hearth/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numConversations := flag.Int("conversations", 40, "Number of conversations to create")
	messagesPerConv := flag.Int("messages", 15, "Approximate messages per conversation")
	groupRatio := flag.Int("group-ratio", 30, "Percentage of conversations created as groups")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	profilePath := flag.String("profile", "", "Path to a YAML seeding profile (overrides other flags)")
	flag.Parse()

	log.Println("Hearth Database Seeder")
	log.Println("======================")

	opts := seed.Options{
		NumUsers:          *numUsers,
		NumConversations:  *numConversations,
		MessagesPerConv:   *messagesPerConv,
		GroupRatioPercent: *groupRatio,
		ShouldClean:       *shouldClean,
	}
	if *profilePath != "" {
		profile, err := seed.LoadProfile(*profilePath)
		if err != nil {
			log.Fatalf("Failed to load seeding profile: %v", err)
		}
		opts = profile.Options()
		log.Printf("Loaded profile %s", *profilePath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.NewSeeder(db, opts).Run(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
