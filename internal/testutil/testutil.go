// Package testutil provides shared database fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"warbler/internal/config"
	"warbler/internal/credential"
	"warbler/internal/database"
	"warbler/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every user created by CreateUser.
const TestPassword = "password"

// TestConfig returns a config for an isolated in-memory SQLite database.
func TestConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		Port:           "0",
		JWTSecret:      "test-secret-with-at-least-32-characters",
		DBDriver:       "sqlite",
		SQLitePath:     "file::memory:?_foreign_keys=on",
		DBSchemaMode:   database.SchemaModeAuto,
		BcryptCost:     4,
		AllowedOrigins: "*",
	}
}

// NewTestDB opens a fresh, fully migrated in-memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(TestConfig())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewMockDB returns a PostgreSQL-dialect GORM handle backed by sqlmock.
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return db, mock
}

var testHasher = credential.NewHasher(4)

// CreateUser inserts a user named username with email username@test.com and TestPassword.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := testHasher.Hash(TestPassword)
	require.NoError(t, err)

	user := &models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@test.com", username),
		Password: hash,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateMessage inserts a message by author. Successive calls get strictly
// increasing timestamps so ordering assertions are deterministic.
func CreateMessage(t *testing.T, db *gorm.DB, author *models.User, text string) *models.Message {
	t.Helper()
	msg := &models.Message{Text: text, UserID: author.ID, Timestamp: nextTimestamp()}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

// Follow records follower following followed.
func Follow(t *testing.T, db *gorm.DB, follower, followed *models.User) {
	t.Helper()
	require.NoError(t, db.Create(&models.Follow{FollowerID: follower.ID, FollowedID: followed.ID}).Error)
}

// Like records user liking msg.
func Like(t *testing.T, db *gorm.DB, user *models.User, msg *models.Message) {
	t.Helper()
	require.NoError(t, db.Create(&models.Like{UserID: user.ID, MessageID: msg.ID}).Error)
}

var (
	epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks atomic.Int64
)

func nextTimestamp() time.Time {
	return epoch.Add(time.Duration(ticks.Add(1)) * time.Minute)
}
