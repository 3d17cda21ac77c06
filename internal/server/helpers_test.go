package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestServer builds a fully wired app on a fresh in-memory database.
// rdb may be nil, in which case sessions live in memory.
func newTestServer(t *testing.T, rdb *redis.Client) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	s, err := NewServerWithDeps(testutil.TestConfig(), db, rdb)
	require.NoError(t, err)
	return s, s.App(), db
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	for _, ck := range cookies {
		if ck != nil {
			req.AddCookie(ck)
		}
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, app *fiber.App, target string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	return doRequest(t, app, httptest.NewRequest(http.MethodGet, target, nil), cookies...)
}

func postForm(t *testing.T, app *fiber.App, target string, form url.Values, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return doRequest(t, app, req, cookies...)
}

func sendJSON(t *testing.T, app *fiber.App, method, target, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return doRequest(t, app, req)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookieName {
			return ck
		}
	}
	return nil
}

// loginAs logs username in through the form and returns the session cookie.
func loginAs(t *testing.T, app *fiber.App, username string) *http.Cookie {
	t.Helper()
	resp := postForm(t, app, "/login", url.Values{
		"username": {username},
		"password": {testutil.TestPassword},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	ck := sessionCookie(resp)
	require.NotNil(t, ck, "login should set the session cookie")
	return ck
}

func tokenFor(t *testing.T, s *Server, user *models.User) string {
	t.Helper()
	token, _, err := middleware.GenerateToken(s.config.JWTSecret, user.ID, user.Username, time.Now())
	require.NoError(t, err)
	return token
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"msgId", "msg ID"},
		{"followedUserId", "followed user ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 25)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	tests := []struct {
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{"", 25, 0},
		{"?limit=10&offset=5", 10, 5},
		{"?limit=1000", maxPaginationLimit, 0},
		{"?limit=-3&offset=-1", 25, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var got struct {
				Limit  int `json:"limit"`
				Offset int `json:"offset"`
			}
			decodeJSON(t, resp, &got)
			assert.Equal(t, tt.expectedLimit, got.Limit)
			assert.Equal(t, tt.expectedOffset, got.Offset)
		})
	}
}

func TestParseID(t *testing.T) {
	s := &Server{}
	app := fiber.New()
	app.Get("/things/:id", func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/things/abc", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body models.ErrorResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "Invalid ID", body.Error)
	assert.Equal(t, models.CodeValidation, body.Code)

	resp2, err := app.Test(httptest.NewRequest(http.MethodGet, "/things/0", nil))
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestSafeReferer(t *testing.T) {
	app := fiber.New()
	app.Get("/back", func(c *fiber.Ctx) error {
		return c.SendString(safeReferer(c))
	})

	tests := []struct {
		name     string
		referer  string
		expected string
	}{
		{"missing", "", "/"},
		{"same host", "http://example.com/users/3?x=1", "/users/3?x=1"},
		{"relative path", "/messages/9", "/messages/9"},
		{"other host", "http://evil.test/phish", "/"},
		{"protocol relative", "//evil.test/phish", "/"},
		{"not a path", "javascript:alert(1)", "/"},
		{"same host root", "http://example.com", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/back", nil)
			if tt.referer != "" {
				req.Header.Set(fiber.HeaderReferer, tt.referer)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expected, readBody(t, resp))
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", models.NewNotFoundError("User", 1), http.StatusNotFound},
		{"validation", models.NewValidationError("bad"), http.StatusBadRequest},
		{"unauthorized", models.NewUnauthorizedError("no"), http.StatusForbidden},
		{"conflict", models.NewConflictError("dup", errors.New("x")), http.StatusConflict},
		{"internal", models.NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.err))
		})
	}
}

func TestMapServiceError_HidesInternalCause(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapServiceError(c, errors.New("pq: password authentication failed"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Internal server error")
	assert.NotContains(t, body, "password authentication")
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "05 March 2024", formatDate(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))
}
