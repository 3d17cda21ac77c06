package seed

import (
	"context"
	"testing"
	"time"
	"unicode/utf8"

	"warbler/internal/credential"
	"warbler/internal/models"
	"warbler/internal/testutil"
	"warbler/internal/validation"
)

func TestFactory_DryRunAssignsIDs(t *testing.T) {
	f, err := NewFactory(nil, Options{DryRun: true, MaxDays: 30, BcryptCost: 4, RandSeed: 42})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	ctx := context.Background()

	seen := map[uint]bool{}
	var author *models.User
	for i := 0; i < 5; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if u.ID == 0 || seen[u.ID] {
			t.Fatalf("expected fresh synthetic id, got %d", u.ID)
		}
		seen[u.ID] = true
		author = u
	}

	m, err := f.CreateMessage(ctx, author)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == 0 || seen[m.ID] {
		t.Fatalf("expected fresh synthetic id for message, got %d", m.ID)
	}
	if m.UserID != author.ID {
		t.Fatalf("expected author %d, got %d", author.ID, m.UserID)
	}
}

func TestFactory_GeneratesValidRecords(t *testing.T) {
	f, err := NewFactory(nil, Options{DryRun: true, MaxDays: 30, BcryptCost: 4, RandSeed: 7})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	ctx := context.Background()
	oldest := time.Now().UTC().Add(-31 * 24 * time.Hour)

	names := map[string]bool{}
	for i := 0; i < 200; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if err := validation.ValidateUsername(u.Username); err != nil {
			t.Fatalf("username %q rejected: %v", u.Username, err)
		}
		if err := validation.ValidateEmail(u.Email); err != nil {
			t.Fatalf("email %q rejected: %v", u.Email, err)
		}
		if names[u.Username] {
			t.Fatalf("duplicate username %q", u.Username)
		}
		names[u.Username] = true

		m, err := f.CreateMessage(ctx, u)
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
		if err := validation.ValidateMessageText(m.Text); err != nil {
			t.Fatalf("message %q rejected: %v", m.Text, err)
		}
		if m.Timestamp.Before(oldest) || m.Timestamp.After(time.Now().UTC().Add(time.Second)) {
			t.Fatalf("timestamp %v outside the last 30 days", m.Timestamp)
		}
	}
}

func TestFactory_FollowSkipsSelf(t *testing.T) {
	f, err := NewFactory(nil, Options{DryRun: true, BcryptCost: 4})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	u := &models.User{ID: 3}
	created, err := f.Follow(context.Background(), u, u)
	if err != nil || created {
		t.Fatalf("expected self follow to be skipped, got created=%v err=%v", created, err)
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"O'Keefe123", "OKeefe123"},
		{"x", "warblerx"},
		{"Zoë_Smith", "ZoSmith"},
		{"abcdefghijklmnopqrstuvwxyz0123456789", "abcdefghijklmnopqrstuvwxyz"},
	}
	for _, tt := range tests {
		if got := sanitizeUsername(tt.in); got != tt.want {
			t.Errorf("sanitizeUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "héllo "
	}
	got := truncateRunes(long, models.MaxMessageLength)
	if n := utf8.RuneCountInString(got); n > models.MaxMessageLength {
		t.Fatalf("expected at most %d runes, got %d", models.MaxMessageLength, n)
	}
	if truncateRunes("short", 140) != "short" {
		t.Fatal("short text should be unchanged")
	}
}

func TestSeeder_RequiresDatabase(t *testing.T) {
	if _, err := NewSeeder(nil, Options{BcryptCost: 4}); err == nil {
		t.Fatal("expected error without a database")
	}
}

func countRows(t *testing.T, s *Seeder, model any) int64 {
	t.Helper()
	var n int64
	if err := s.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestSeeder_RunPopulatesDatabase(t *testing.T) {
	db := testutil.NewTestDB(t)
	opts := Options{
		NumUsers:    8,
		NumMessages: 30,
		MaxFollows:  4,
		MaxLikes:    5,
		BcryptCost:  4,
		RandSeed:    99,
	}
	s, err := NewSeeder(db, opts)
	if err != nil {
		t.Fatalf("NewSeeder: %v", err)
	}

	summary, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := countRows(t, s, &models.User{}); got != 8 || summary.Users != 8 {
		t.Fatalf("expected 8 users, got %d (summary %d)", got, summary.Users)
	}
	if got := countRows(t, s, &models.Message{}); got != 30 {
		t.Fatalf("expected 30 messages, got %d", got)
	}
	if got := countRows(t, s, &models.Follow{}); got != int64(summary.Follows) {
		t.Fatalf("follow count %d does not match summary %d", got, summary.Follows)
	}
	if got := countRows(t, s, &models.Like{}); got != int64(summary.Likes) {
		t.Fatalf("like count %d does not match summary %d", got, summary.Likes)
	}

	var selfFollows int64
	db.Model(&models.Follow{}).Where("user_following_id = user_being_followed_id").Count(&selfFollows)
	if selfFollows != 0 {
		t.Fatalf("expected no self follows, got %d", selfFollows)
	}

	var user models.User
	if err := db.First(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !credential.NewHasher(4).Verify(DefaultPassword, user.Password) {
		t.Fatal("seeded users should accept the default password")
	}
}

func TestSeeder_ClearAll(t *testing.T) {
	db := testutil.NewTestDB(t)
	s, err := NewSeeder(db, Options{NumUsers: 3, NumMessages: 5, MaxFollows: 2, MaxLikes: 2, BcryptCost: 4})
	if err != nil {
		t.Fatalf("NewSeeder: %v", err)
	}
	ctx := context.Background()
	if _, err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	for _, model := range []any{&models.Like{}, &models.Follow{}, &models.Message{}, &models.User{}} {
		if got := countRows(t, s, model); got != 0 {
			t.Fatalf("expected %T table empty, got %d rows", model, got)
		}
	}
}

func TestSeeder_CleanReplacesExistingData(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.CreateUser(t, db, "leftover")

	s, err := NewSeeder(db, Options{NumUsers: 4, Clean: true, BcryptCost: 4})
	if err != nil {
		t.Fatalf("NewSeeder: %v", err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := countRows(t, s, &models.User{}); got != 4 {
		t.Fatalf("expected 4 users after clean seed, got %d", got)
	}
}
