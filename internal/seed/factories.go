package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"warbler/internal/credential"
	"warbler/internal/middleware"
	"warbler/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxUsernameLength = 30

// Factory builds sample users, messages, follows and likes. In dry-run mode
// nothing is written and records get synthetic IDs.
type Factory struct {
	db           *gorm.DB
	opts         Options
	faker        *gofakeit.Faker
	passwordHash string
	nextID       uint
	taken        map[string]struct{}
}

// NewFactory hashes opts.Password once; every generated user shares it.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	opts = opts.withDefaults()
	hash, err := credential.NewHasher(opts.BcryptCost).Hash(opts.Password)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	return &Factory{
		db:           db,
		opts:         opts,
		faker:        gofakeit.New(opts.RandSeed),
		passwordHash: hash,
		taken:        make(map[string]struct{}),
	}, nil
}

// CreateUser persists a user with a unique, valid username.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	username := f.uniqueUsername()
	user := &models.User{
		Username:       username,
		Email:          strings.ToLower(username) + "@" + f.faker.DomainName(),
		Password:       f.passwordHash,
		HeaderImageURL: fmt.Sprintf("https://picsum.photos/seed/%s/1200/400", f.faker.UUID()),
		Bio:            f.faker.HipsterSentence(8),
		Location:       f.faker.City() + ", " + f.faker.StateAbr(),
	}
	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		middleware.Logger.Info("[dry-run] create user", slog.Uint64("id", uint64(user.ID)), slog.String("username", user.Username))
		return user, nil
	}

	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateMessage persists a message by author, timestamped somewhere in the
// last MaxDays days.
func (f *Factory) CreateMessage(ctx context.Context, author *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	msg := &models.Message{
		Text:      f.messageText(),
		Timestamp: f.pastTime(),
		UserID:    author.ID,
	}
	for _, override := range overrides {
		override(msg)
	}

	if f.opts.DryRun {
		f.nextID++
		msg.ID = f.nextID
		middleware.Logger.Info("[dry-run] create message", slog.Uint64("id", uint64(msg.ID)), slog.Uint64("user_id", uint64(msg.UserID)))
		return msg, nil
	}

	if err := f.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// Follow records follower following followed. It reports false when the
// edge already existed or follower and followed are the same user.
func (f *Factory) Follow(ctx context.Context, follower, followed *models.User) (bool, error) {
	if follower.ID == followed.ID {
		return false, nil
	}
	if f.opts.DryRun {
		return true, nil
	}
	res := f.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: follower.ID, FollowedID: followed.ID})
	return res.RowsAffected > 0, res.Error
}

// Like records user liking msg, reporting false if it already did.
func (f *Factory) Like(ctx context.Context, user *models.User, msg *models.Message) (bool, error) {
	if f.opts.DryRun {
		return true, nil
	}
	res := f.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{UserID: user.ID, MessageID: msg.ID})
	return res.RowsAffected > 0, res.Error
}

func (f *Factory) uniqueUsername() string {
	base := sanitizeUsername(f.faker.Username())
	name := base
	for i := 2; ; i++ {
		if _, dup := f.taken[strings.ToLower(name)]; !dup {
			break
		}
		suffix := fmt.Sprintf("%d", i)
		if len(base)+len(suffix) > maxUsernameLength {
			base = base[:maxUsernameLength-len(suffix)]
		}
		name = base + suffix
	}
	f.taken[strings.ToLower(name)] = struct{}{}
	return name
}

// sanitizeUsername keeps ASCII letters and digits so the result passes
// signup validation.
func sanitizeUsername(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) < 2 {
		name = "warbler" + name
	}
	if len(name) > maxUsernameLength-4 {
		name = name[:maxUsernameLength-4]
	}
	return name
}

func (f *Factory) messageText() string {
	text := f.faker.Sentence(f.faker.Number(3, 24))
	return truncateRunes(text, models.MaxMessageLength)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

func (f *Factory) pastTime() time.Time {
	minutesBack := f.faker.Number(0, f.opts.MaxDays*24*60)
	return time.Now().UTC().Add(-time.Duration(minutesBack) * time.Minute)
}
