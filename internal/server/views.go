package server

import (
	"bytes"
	"fmt"

	"warbler/internal/models"

	"github.com/gofiber/fiber/v2"
)

const baseLayout = "layouts/base"

// render executes a page inside the base layout. Every page sees CurrentUser
// and the flashes queued since the last render. A template failure is
// returned as an error so nothing half-rendered reaches the client.
func (s *Server) render(c *fiber.Ctx, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["CurrentUser"] = currentUser(c)

	flashes, err := s.popFlashes(c)
	if err != nil {
		return err
	}
	data["Flashes"] = flashes

	if s.views == nil {
		return c.Render(name, data)
	}
	var buf bytes.Buffer
	if err := s.views.Render(&buf, name, data, baseLayout); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

// followedByViewer returns the ids the current user follows, used to pick
// Follow or Unfollow on each user tile. Anonymous viewers get an empty set.
func (s *Server) followedByViewer(c *fiber.Ctx) (map[uint]bool, error) {
	followed := map[uint]bool{}
	viewerID := currentUserID(c)
	if viewerID == 0 {
		return followed, nil
	}
	ids, err := s.followService.FollowingIDs(c.UserContext(), viewerID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		followed[id] = true
	}
	return followed, nil
}

// profileData is the shared binding for pages built on the profile header.
func (s *Server) profileData(c *fiber.Ctx, user *models.User) (fiber.Map, error) {
	ctx := c.UserContext()

	stats, err := s.userService.Stats(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	data := fiber.Map{
		"Title": "@" + user.Username,
		"User":  user,
		"Stats": stats,
	}

	if viewer := currentUser(c); viewer != nil {
		data["IsSelf"] = viewer.ID == user.ID
		following, err := s.followService.IsFollowing(ctx, viewer.ID, user.ID)
		if err != nil {
			return nil, err
		}
		data["IsFollowing"] = following
	}
	return data, nil
}
