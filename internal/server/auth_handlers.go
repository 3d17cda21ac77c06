package server

import (
	"errors"
	"fmt"
	"time"

	"warbler/internal/cache"
	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/service"

	"github.com/gofiber/fiber/v2"
)

type signupForm struct {
	Username string `form:"username"`
	Email    string `form:"email"`
	Password string `form:"password"`
	ImageURL string `form:"image_url"`
}

type loginForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Home handles GET /
func (s *Server) Home(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return s.render(c, "home-anon", nil)
	}

	ctx := c.UserContext()
	messages, err := s.messageService.Timeline(ctx, user.ID, service.TimelineLimit)
	if err != nil {
		return err
	}
	stats, err := s.userService.Stats(ctx, user.ID)
	if err != nil {
		return pageError(err)
	}

	return s.render(c, "home", fiber.Map{
		"Messages": messages,
		"Stats":    stats,
	})
}

// SignupPage handles GET /signup
func (s *Server) SignupPage(c *fiber.Ctx) error {
	return s.render(c, "users/signup", fiber.Map{"Title": "Sign up", "Form": signupForm{}})
}

// SignupSubmit handles POST /signup. A taken username or email re-renders the
// form with a flash; success logs the new user in.
func (s *Server) SignupSubmit(c *fiber.Ctx) error {
	var form signupForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}

	user, err := s.userService.Signup(c.UserContext(), service.SignupInput{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		ImageURL: form.ImageURL,
	})
	if err != nil {
		var appErr *models.AppError
		switch {
		case models.HasCode(err, models.CodeConflict):
			err = s.flash(c, flashDanger, "Username already taken")
		case errors.As(err, &appErr) && appErr.Code == models.CodeValidation:
			err = s.flash(c, flashDanger, appErr.Message)
		default:
			return err
		}
		if err != nil {
			return err
		}
		form.Password = ""
		return s.render(c, "users/signup", fiber.Map{"Title": "Sign up", "Form": form})
	}

	if err := s.login(c, user); err != nil {
		return err
	}
	return c.Redirect("/")
}

// LoginPage handles GET /login
func (s *Server) LoginPage(c *fiber.Ctx) error {
	return s.render(c, "users/login", fiber.Map{"Title": "Log in"})
}

// LoginSubmit handles POST /login. Unknown usernames and wrong passwords get
// the same "Invalid credentials." flash.
func (s *Server) LoginSubmit(c *fiber.Ctx) error {
	var form loginForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}

	user, ok := s.userService.Authenticate(c.UserContext(), form.Username, form.Password)
	if !ok {
		if err := s.flash(c, flashDanger, "Invalid credentials."); err != nil {
			return err
		}
		return s.render(c, "users/login", fiber.Map{"Title": "Log in", "Username": form.Username})
	}

	greeting := Flash{Category: flashSuccess, Message: fmt.Sprintf("Hello, %s!", user.Username)}
	if err := s.login(c, user, greeting); err != nil {
		return err
	}
	return c.Redirect("/")
}

// Logout handles GET /logout
func (s *Server) Logout(c *fiber.Ctx) error {
	bye := Flash{Category: flashSuccess, Message: "You have successfully logged out."}
	if err := s.logout(c, bye); err != nil {
		return err
	}
	return c.Redirect("/login")
}

// APISignup handles POST /api/auth/signup
func (s *Server) APISignup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Signup(c.UserContext(), req)
	if err != nil {
		return mapServiceError(c, err)
	}

	token, _, err := middleware.GenerateToken(s.config.JWTSecret, user.ID, user.Username, time.Now())
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// APILogin handles POST /api/auth/login
func (s *Server) APILogin(c *fiber.Ctx) error {
	var req loginForm
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, ok := s.userService.Authenticate(c.UserContext(), req.Username, req.Password)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	token, _, err := middleware.GenerateToken(s.config.JWTSecret, user.ID, user.Username, time.Now())
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// APILogout handles POST /api/auth/logout by revoking the presented token.
func (s *Server) APILogout(c *fiber.Ctx) error {
	if err := s.revokeCurrentToken(c); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// revokeCurrentToken blacklists the request's token until it would expire.
// Without Redis tokens simply run out.
func (s *Server) revokeCurrentToken(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*middleware.Claims)
	if !ok || s.redis == nil || claims.ExpiresAt == nil {
		return nil
	}
	return cache.RevokeToken(c.UserContext(), s.redis, claims.ID, claims.ExpiresAt.Time)
}
