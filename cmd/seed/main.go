// Command seed fills the database with demo users, posts, comments and likes.
package main

import (
	"context"
	"flag"
	"log"

	"quill/internal/bootstrap"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 50, "Number of posts to create")
	maxDays := flag.Int("days", 90, "Spread post dates over this many past days")
	fixtures := flag.String("fixtures", "", "YAML fixtures file applied before random content")
	shouldClean := flag.Bool("clean", false, "Delete all content before seeding")
	flag.Parse()

	log.Printf("Seeding: %d users, %d posts, clean=%v", *numUsers, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipRedis: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	res, err := seed.NewSeeder(db, seed.Options{
		Users:    *numUsers,
		Posts:    *numPosts,
		MaxDays:  *maxDays,
		Fixtures: *fixtures,
		Clean:    *shouldClean,
	}).Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d users, %d posts, %d comments, %d likes", res.Users, res.Posts, res.Comments, res.Likes)
	log.Printf("Generated users have the password: %s", seed.DefaultPassword)
}
