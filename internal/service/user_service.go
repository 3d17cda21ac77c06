// Package service holds the business rules between HTTP handlers and repositories.
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// UserService implements signup, authentication and profile management.
type UserService struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// SignupInput is the data needed to create an account.
type SignupInput struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email_address"`
	Password string `json:"password" validate:"required,password"`
	ImageURL string `json:"image_url" validate:"omitempty,uri,max=2048"`
}

// UpdateProfileInput changes profile fields. Empty strings and nil pointers
// leave the stored value unchanged. Password must be the current password.
type UpdateProfileInput struct {
	UserID         uint    `json:"-"`
	Username       string  `json:"username" validate:"omitempty,username"`
	Email          string  `json:"email" validate:"omitempty,email_address"`
	ImageURL       string  `json:"image_url" validate:"omitempty,uri,max=2048"`
	HeaderImageURL string  `json:"header_image_url" validate:"omitempty,uri,max=2048"`
	Bio            *string `json:"bio" validate:"omitempty,max=500"`
	Location       *string `json:"location" validate:"omitempty,max=100"`
	Password       string  `json:"password" validate:"required"`
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{userRepo: userRepo, hasher: hasher}
}

// Signup validates the input, hashes the password and inserts the user.
// Nothing is written when validation fails. A taken username or email is
// reported by the store on insert as CONFLICT.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (user *models.User, err error) {
	ctx, span := observability.StartSpan(ctx, "UserService.Signup")
	defer func() { observability.EndSpan(span, err) }()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	if err = validation.Struct(in); err != nil {
		observability.SignupsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		observability.SignupsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	user = &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
		ImageURL: in.ImageURL,
	}
	if err = s.userRepo.Create(ctx, user); err != nil {
		if models.HasCode(err, models.CodeConflict) {
			observability.SignupsTotal.WithLabelValues("conflict").Inc()
		} else {
			observability.SignupsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	observability.SignupsTotal.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("user.id", int(user.ID)))
	return user, nil
}

// Authenticate returns the user when username and password match. An unknown
// username and a wrong password give the same (nil, false) result.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, bool) {
	ctx, span := observability.StartSpan(ctx, "UserService.Authenticate")
	defer span.End()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "user lookup failed during login", slog.String("error", err.Error()))
	}
	if user == nil {
		// Spend the same bcrypt work as a real comparison.
		s.hasher.Verify(password, s.timingHash())
		observability.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, false
	}
	if !s.hasher.Verify(password, user.Password) {
		observability.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, false
	}

	observability.LoginsTotal.WithLabelValues("success").Inc()
	return user, true
}

func (s *UserService) timingHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("warbler-login-timing")
	})
	return s.dummyHash
}

// GetUserByID returns NOT_FOUND for unknown ids.
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// SearchUsers lists users whose username contains q; an empty q lists all.
func (s *UserService) SearchUsers(ctx context.Context, q string, limit, offset int) ([]models.User, error) {
	return s.userRepo.Search(ctx, q, limit, offset)
}

// Stats returns the profile counters for an existing user.
func (s *UserService) Stats(ctx context.Context, id uint) (*models.UserStats, error) {
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.userRepo.Stats(ctx, id)
}

// UpdateProfile applies in after re-checking the current password.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.HeaderImageURL = strings.TrimSpace(in.HeaderImageURL)

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(in.Password, user.Password) {
		return nil, models.NewUnauthorizedError("Wrong password, please try again.")
	}

	if in.Username != "" {
		user.Username = in.Username
	}
	if in.Email != "" {
		user.Email = in.Email
	}
	if in.ImageURL != "" {
		user.ImageURL = in.ImageURL
	}
	if in.HeaderImageURL != "" {
		user.HeaderImageURL = in.HeaderImageURL
	}
	if in.Bio != nil {
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Location != nil {
		user.Location = strings.TrimSpace(*in.Location)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes the user and everything they own.
func (s *UserService) DeleteAccount(ctx context.Context, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "UserService.DeleteAccount", attribute.Int("user.id", int(id)))
	defer func() { observability.EndSpan(span, err) }()

	return s.userRepo.Delete(ctx, id)
}
