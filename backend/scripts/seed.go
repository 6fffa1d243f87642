package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"socialgraph/backend/internal/graphstore/stores"
	"socialgraph/backend/internal/social"
	"socialgraph/backend/pkg/config"
	apperrors "socialgraph/backend/pkg/errors"
	"socialgraph/backend/pkg/logger"
)

type seedPost struct {
	id      string
	author  string
	hashtag string
}

var (
	seedProfiles = []string{"alice", "bob", "carol", "dave", "erin", "frank"}

	seedFollows = [][2]string{
		{"alice", "bob"}, {"alice", "carol"},
		{"bob", "carol"}, {"bob", "dave"},
		{"carol", "dave"}, {"carol", "erin"},
		{"dave", "alice"}, {"erin", "alice"}, {"frank", "alice"},
	}

	seedPosts = []seedPost{
		{"seed-post-1", "alice", "golang"},
		{"seed-post-2", "alice", "graphs"},
		{"seed-post-3", "bob", "golang"},
		{"seed-post-4", "carol", "cooking"},
		{"seed-post-5", "dave", "graphs"},
		{"seed-post-6", "erin", "travel"},
	}

	// likes, clicks and views by profile
	seedLikes = map[string][]string{
		"bob":   {"seed-post-1", "seed-post-2"},
		"carol": {"seed-post-1", "seed-post-5"},
		"dave":  {"seed-post-3"},
	}
	seedClicks = map[string][]string{
		"alice": {"seed-post-3", "seed-post-5"},
		"bob":   {"seed-post-1", "seed-post-3", "seed-post-6"},
		"carol": {"seed-post-1", "seed-post-4"},
		"frank": {"seed-post-2", "seed-post-5"},
	}
	seedPins = map[string][]string{
		"alice": {"golang"},
		"bob":   {"golang", "graphs"},
		"carol": {"cooking", "travel"},
		"erin":  {"travel"},
	}
	seedComments = []struct {
		author, postID, text string
	}{
		{"bob", "seed-post-1", "Great write-up @alice"},
		{"carol", "seed-post-1", "Bookmarked"},
		{"alice", "seed-post-4", "Recipe please"},
	}
)

func main() {
	reset := flag.Bool("reset", false, "Delete the seeded profiles and their content before seeding")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting graph seeding...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	store, err := stores.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open graph store", zap.Error(err))
	}
	defer store.Close(ctx)

	opts := social.OptionsFromConfig(cfg)
	opts.CascadeProfileDelete = true
	engine := social.NewEngine(store, opts)

	if *reset {
		log.Info("Deleting seeded profiles...")
		for _, username := range seedProfiles {
			err := engine.DeleteProfile(ctx, username)
			if err != nil && !apperrors.IsNotFound(err) {
				log.Fatal("Failed to delete profile", zap.String("username", username), zap.Error(err))
			}
		}
	}

	if _, err := engine.GetProfile(ctx, seedProfiles[0], ""); err == nil {
		log.Info("Graph already seeded, skipping (use -reset to recreate)")
		os.Exit(0)
	}

	if err := seed(ctx, engine); err != nil {
		log.Fatal("Failed to seed graph", zap.Error(err))
	}

	log.Info("Seeding completed",
		zap.Int("profiles", len(seedProfiles)),
		zap.Int("posts", len(seedPosts)),
		zap.Int("comments", len(seedComments)))
}

func seed(ctx context.Context, e *social.Engine) error {
	for _, username := range seedProfiles {
		if err := e.CreateProfile(ctx, social.ProfileInput{Username: username, Name: username}); err != nil {
			return fmt.Errorf("create profile %s: %w", username, err)
		}
	}
	for _, f := range seedFollows {
		if err := e.Follow(ctx, f[0], f[1], true); err != nil {
			return fmt.Errorf("follow %s -> %s: %w", f[0], f[1], err)
		}
	}
	for _, p := range seedPosts {
		if err := e.CreatePost(ctx, p.author, p.id, p.hashtag); err != nil {
			return fmt.Errorf("create post %s: %w", p.id, err)
		}
		if _, err := e.OpenPost(ctx, p.author, p.id); err != nil {
			return fmt.Errorf("open post %s: %w", p.id, err)
		}
	}
	for username, posts := range seedLikes {
		for _, postID := range posts {
			if err := e.LikePost(ctx, username, postID, true); err != nil {
				return fmt.Errorf("like %s by %s: %w", postID, username, err)
			}
		}
	}
	for username, posts := range seedClicks {
		for _, postID := range posts {
			if _, err := e.OpenPost(ctx, username, postID); err != nil {
				return fmt.Errorf("open %s by %s: %w", postID, username, err)
			}
		}
	}
	for username, tags := range seedPins {
		for _, tag := range tags {
			if err := e.PinHashtag(ctx, username, tag, true); err != nil {
				return fmt.Errorf("pin %s by %s: %w", tag, username, err)
			}
		}
	}
	for _, c := range seedComments {
		if _, err := e.CreateComment(ctx, c.author, c.postID, c.text); err != nil {
			return fmt.Errorf("comment on %s by %s: %w", c.postID, c.author, err)
		}
	}
	return nil
}
