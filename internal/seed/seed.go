// Package seed fills a Warbler database with generated sample data.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"warbler/internal/middleware"
	"warbler/internal/models"

	"gorm.io/gorm"
)

// DefaultPassword is the plaintext password every seeded user logs in with.
const DefaultPassword = "password"

// Options controls how much data the seeder produces.
type Options struct {
	NumUsers    int
	NumMessages int
	// MaxFollows and MaxLikes cap the edges created per user.
	MaxFollows int
	MaxLikes   int
	Clean      bool
	DryRun     bool
	MaxDays    int
	Password   string
	BcryptCost int
	// RandSeed makes output reproducible; zero picks a random seed.
	RandSeed int64
}

// DefaultOptions returns a small populated network.
func DefaultOptions() Options {
	return Options{
		NumUsers:    50,
		NumMessages: 200,
		MaxFollows:  10,
		MaxLikes:    15,
		Clean:       true,
		MaxDays:     90,
		Password:    DefaultPassword,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxDays <= 0 {
		o.MaxDays = 90
	}
	if o.Password == "" {
		o.Password = DefaultPassword
	}
	return o
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Messages int
	Follows  int
	Likes    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d messages, %d follows, %d likes", s.Users, s.Messages, s.Follows, s.Likes)
}

// Seeder drives a Factory to build a whole social graph.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder prepares a seeder. db may be nil when opts.DryRun is set.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	if db == nil && !opts.DryRun {
		return nil, fmt.Errorf("seed: database is required unless dry-run is set")
	}
	factory, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{db: db, opts: factory.opts, factory: factory}, nil
}

// ClearAll removes every user, message, follow and like.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		middleware.Logger.Info("[dry-run] skipping cleanup")
		return nil
	}

	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("TRUNCATE TABLE likes, follows, messages, users RESTART IDENTITY CASCADE").Error; err != nil {
			return fmt.Errorf("truncate tables: %w", err)
		}
	} else {
		// Children first so foreign keys hold without cascading.
		for _, table := range []string{"likes", "follows", "messages", "users"} {
			if err := db.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}
	middleware.Logger.Info("cleared existing data")
	return nil
}

// Run seeds users, then messages with random authors, then follow and like
// edges. With Clean set the existing data is removed first.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	if s.opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	summary := &Summary{}
	users := make([]*models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return summary, fmt.Errorf("create user %d: %w", i+1, err)
		}
		users = append(users, u)
	}
	summary.Users = len(users)
	if len(users) == 0 {
		return summary, nil
	}

	messages := make([]*models.Message, 0, s.opts.NumMessages)
	for i := 0; i < s.opts.NumMessages; i++ {
		author := users[s.factory.faker.Number(0, len(users)-1)]
		m, err := s.factory.CreateMessage(ctx, author)
		if err != nil {
			return summary, fmt.Errorf("create message %d: %w", i+1, err)
		}
		messages = append(messages, m)
	}
	summary.Messages = len(messages)

	for _, u := range users {
		for _, target := range sampleOf(s, users, s.opts.MaxFollows) {
			created, err := s.factory.Follow(ctx, u, target)
			if err != nil {
				return summary, fmt.Errorf("follow %d -> %d: %w", u.ID, target.ID, err)
			}
			if created {
				summary.Follows++
			}
		}
		for _, m := range sampleOf(s, messages, s.opts.MaxLikes) {
			created, err := s.factory.Like(ctx, u, m)
			if err != nil {
				return summary, fmt.Errorf("like %d by %d: %w", m.ID, u.ID, err)
			}
			if created {
				summary.Likes++
			}
		}
	}

	middleware.Logger.Info("seeding complete",
		slog.Int("users", summary.Users),
		slog.Int("messages", summary.Messages),
		slog.Int("follows", summary.Follows),
		slog.Int("likes", summary.Likes),
		slog.Bool("dry_run", s.opts.DryRun),
	)
	return summary, nil
}

// sampleOf picks between zero and limit distinct elements of items.
func sampleOf[T any](s *Seeder, items []T, limit int) []T {
	if limit <= 0 || len(items) == 0 {
		return nil
	}
	if limit > len(items) {
		limit = len(items)
	}
	n := s.factory.faker.Number(0, limit)
	pool := append([]T(nil), items...)
	// Partial Fisher-Yates over the first n slots.
	for i := 0; i < n; i++ {
		j := s.factory.faker.Number(i, len(pool)-1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
