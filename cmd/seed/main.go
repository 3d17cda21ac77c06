// Command seed fills the database with generated Warbler users and warbles.
package main

import (
	"context"
	"flag"
	"log"

	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	numMessages := flag.Int("messages", defaults.NumMessages, "Number of messages to create")
	maxFollows := flag.Int("follows", defaults.MaxFollows, "Maximum users each user follows")
	maxLikes := flag.Int("likes", defaults.MaxLikes, "Maximum messages each user likes")
	maxDays := flag.Int("days", defaults.MaxDays, "Spread message timestamps over this many days")
	shouldClean := flag.Bool("clean", defaults.Clean, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Log what would be created without writing")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible output (0 = random)")
	flag.Parse()

	log.Println("Warbler seeder")
	log.Printf("Target: %d users, %d messages, clean=%v dry-run=%v", *numUsers, *numMessages, *shouldClean, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	opts := seed.Options{
		NumUsers:    *numUsers,
		NumMessages: *numMessages,
		MaxFollows:  *maxFollows,
		MaxLikes:    *maxLikes,
		Clean:       *shouldClean,
		DryRun:      *dryRun,
		MaxDays:     *maxDays,
		Password:    seed.DefaultPassword,
		BcryptCost:  cfg.BcryptCost,
		RandSeed:    *randSeed,
	}

	if !*dryRun {
		if _, err := database.Connect(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
	}

	s, err := seed.NewSeeder(database.DB, opts)
	if err != nil {
		log.Fatalf("Failed to prepare seeder: %v", err)
	}

	summary, err := s.Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %s. Every user's password is %q.", summary, seed.DefaultPassword)
}
