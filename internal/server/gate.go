package server

import (
	"encoding/json"
	"log/slog"

	"warbler/internal/cache"
	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

const (
	sessionCookieName = "warbler_session"
	// sessionUserKey holds the logged-in user's id.
	sessionUserKey  = "curr_user"
	sessionFlashKey = "_flashes"

	flashSuccess = "success"
	flashDanger  = "danger"

	msgAccessUnauthorized = "Access unauthorized."
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func readFlashes(sess *session.Session) []Flash {
	raw, ok := sess.Get(sessionFlashKey).(string)
	if !ok || raw == "" {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal([]byte(raw), &flashes); err != nil {
		return nil
	}
	return flashes
}

func addFlash(sess *session.Session, category, message string) {
	flashes := append(readFlashes(sess), Flash{Category: category, Message: message})
	raw, _ := json.Marshal(flashes)
	sess.Set(sessionFlashKey, string(raw))
}

// flash queues a notice for the next rendered page.
func (s *Server) flash(c *fiber.Ctx, category, message string) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	addFlash(sess, category, message)
	return sess.Save()
}

// popFlashes returns and clears the queued notices.
func (s *Server) popFlashes(c *fiber.Ctx) ([]Flash, error) {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return nil, err
	}
	flashes := readFlashes(sess)
	if len(flashes) == 0 {
		return nil, nil
	}
	sess.Delete(sessionFlashKey)
	return flashes, sess.Save()
}

// login stores user in a fresh session, plus any notices to show next.
func (s *Server) login(c *fiber.Ctx, user *models.User, notices ...Flash) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(sessionUserKey, user.ID)
	for _, n := range notices {
		addFlash(sess, n.Category, n.Message)
	}
	return sess.Save()
}

// logout drops the user from the session, plus any notices to show next.
func (s *Server) logout(c *fiber.Ctx, notices ...Flash) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	sess.Delete(sessionUserKey)
	if err := sess.Regenerate(); err != nil {
		return err
	}
	for _, n := range notices {
		addFlash(sess, n.Category, n.Message)
	}
	return sess.Save()
}

// LoadCurrentUser resolves the session's user id, if any, into c.Locals.
// A stale id, one whose user no longer exists, is dropped from the session.
func (s *Server) LoadCurrentUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := s.sessions.Get(c)
		if err != nil {
			return err
		}
		id, ok := sess.Get(sessionUserKey).(uint)
		if !ok || id == 0 {
			return c.Next()
		}

		user, err := s.userService.GetUserByID(c.UserContext(), id)
		if err != nil {
			if !models.HasCode(err, models.CodeNotFound) {
				return err
			}
			sess.Delete(sessionUserKey)
			if err := sess.Save(); err != nil {
				return err
			}
			return c.Next()
		}

		c.Locals("currentUser", user)
		c.Locals("userID", user.ID)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), user.ID))
		return c.Next()
	}
}

// RequireUser refuses anonymous requests: it flashes "Access unauthorized."
// and redirects home without running the handler.
func (s *Server) RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) != nil {
			return c.Next()
		}
		observability.AccessDenied.WithLabelValues("web").Inc()
		if err := s.flash(c, flashDanger, msgAccessUnauthorized); err != nil {
			return err
		}
		return c.Redirect("/")
	}
}

// AuthRequired validates the bearer token and puts the user id in c.Locals.
// Every failure is reported with the same 401 body.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, userID, ok := s.authenticateToken(c)
		if !ok {
			observability.AccessDenied.WithLabelValues("api").Inc()
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Access unauthorized"))
		}

		c.Locals("userID", userID)
		c.Locals("claims", claims)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
		return c.Next()
	}
}

func (s *Server) authenticateToken(c *fiber.Ctx) (*middleware.Claims, uint, bool) {
	token := middleware.BearerToken(c)
	if token == "" {
		return nil, 0, false
	}
	claims, err := middleware.ParseToken(s.config.JWTSecret, token)
	if err != nil {
		return nil, 0, false
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, 0, false
	}

	if s.redis != nil {
		revoked, err := cache.IsTokenRevoked(c.UserContext(), s.redis, claims.ID)
		if err != nil {
			// Fail open on Redis outages; the token is still signed and unexpired.
			middleware.Logger.WarnContext(c.UserContext(), "token revocation check failed",
				slog.String("error", err.Error()))
		} else if revoked {
			return nil, 0, false
		}
	}

	if _, err := s.userService.GetUserByID(c.UserContext(), userID); err != nil {
		return nil, 0, false
	}
	return claims, userID, true
}

// optionalUserID returns the bearer token's user when a valid one is present.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	_, userID, ok := s.authenticateToken(c)
	if !ok {
		return 0
	}
	return userID
}

func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("currentUser").(*models.User)
	return user
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}
