package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warbler/internal/models"
	"warbler/internal/service"

	"github.com/gofiber/fiber/v2"
)

type profileForm struct {
	Username       string `form:"username"`
	Email          string `form:"email"`
	ImageURL       string `form:"image_url"`
	HeaderImageURL string `form:"header_image_url"`
	Bio            string `form:"bio"`
	Location       string `form:"location"`
	Password       string `form:"password"`
}

func profileFormFor(u *models.User) profileForm {
	return profileForm{
		Username:       u.Username,
		Email:          u.Email,
		ImageURL:       u.ImageURL,
		HeaderImageURL: u.HeaderImageURL,
		Bio:            u.Bio,
		Location:       u.Location,
	}
}

// UsersIndex handles GET /users?q=
func (s *Server) UsersIndex(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	page := parsePagination(c, maxPaginationLimit)

	users, err := s.userService.SearchUsers(c.UserContext(), q, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	followed, err := s.followedByViewer(c)
	if err != nil {
		return err
	}
	return s.render(c, "users/index", fiber.Map{
		"Title":    "Users",
		"Users":    users,
		"Query":    q,
		"Followed": followed,
	})
}

// UserShow handles GET /users/:id
func (s *Server) UserShow(c *fiber.Ctx) error {
	user, err := s.pageUser(c)
	if err != nil {
		return err
	}

	data, err := s.profileData(c, user)
	if err != nil {
		return pageError(err)
	}
	messages, err := s.messageService.MessagesOf(c.UserContext(), user.ID, currentUserID(c), service.TimelineLimit)
	if err != nil {
		return err
	}
	data["Messages"] = messages

	return s.render(c, "users/show", data)
}

// UserFollowing handles GET /users/:id/following
func (s *Server) UserFollowing(c *fiber.Ctx) error {
	return s.renderFollows(c, "Following", s.followService.Following)
}

// UserFollowers handles GET /users/:id/followers
func (s *Server) UserFollowers(c *fiber.Ctx) error {
	return s.renderFollows(c, "Followers", s.followService.Followers)
}

func (s *Server) renderFollows(c *fiber.Ctx, title string, list func(context.Context, uint) ([]models.User, error)) error {
	user, err := s.pageUser(c)
	if err != nil {
		return err
	}
	users, err := list(c.UserContext(), user.ID)
	if err != nil {
		return pageError(err)
	}

	data, err := s.profileData(c, user)
	if err != nil {
		return pageError(err)
	}
	followed, err := s.followedByViewer(c)
	if err != nil {
		return err
	}
	data["Title"] = title
	data["Users"] = users
	data["Followed"] = followed
	return s.render(c, "users/follows", data)
}

// UserLikes handles GET /users/:id/likes
func (s *Server) UserLikes(c *fiber.Ctx) error {
	user, err := s.pageUser(c)
	if err != nil {
		return err
	}
	messages, err := s.messageService.LikedBy(c.UserContext(), user.ID, currentUserID(c))
	if err != nil {
		return err
	}

	data, err := s.profileData(c, user)
	if err != nil {
		return pageError(err)
	}
	data["Messages"] = messages
	return s.render(c, "users/likes", data)
}

func (s *Server) pageUser(c *fiber.Ctx) (*models.User, error) {
	id, err := pageID(c, "id")
	if err != nil {
		return nil, err
	}
	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return nil, pageError(err)
	}
	return user, nil
}

// FollowUser handles POST /users/follow/:id
func (s *Server) FollowUser(c *fiber.Ctx) error {
	id, err := pageID(c, "id")
	if err != nil {
		return err
	}
	viewer := currentUser(c)
	if err := s.followService.Follow(c.UserContext(), viewer.ID, id); err != nil {
		return pageError(err)
	}
	return c.Redirect(fmt.Sprintf("/users/%d/following", viewer.ID))
}

// StopFollowing handles POST /users/stop-following/:id
func (s *Server) StopFollowing(c *fiber.Ctx) error {
	id, err := pageID(c, "id")
	if err != nil {
		return err
	}
	viewer := currentUser(c)
	if err := s.followService.Unfollow(c.UserContext(), viewer.ID, id); err != nil {
		return pageError(err)
	}
	return c.Redirect(fmt.Sprintf("/users/%d/following", viewer.ID))
}

// AddLike handles POST /users/add_like/:id and sends the user back where
// they came from.
func (s *Server) AddLike(c *fiber.Ctx) error {
	id, err := pageID(c, "id")
	if err != nil {
		return err
	}
	if _, err := s.messageService.ToggleLike(c.UserContext(), currentUserID(c), id); err != nil {
		return pageError(err)
	}
	return c.Redirect(safeReferer(c))
}

// ProfileEditPage handles GET /users/profile
func (s *Server) ProfileEditPage(c *fiber.Ctx) error {
	return s.render(c, "users/edit", fiber.Map{
		"Title": "Edit profile",
		"Form":  profileFormFor(currentUser(c)),
	})
}

// ProfileEditSubmit handles POST /users/profile. The current password is
// required; a wrong one changes nothing.
func (s *Server) ProfileEditSubmit(c *fiber.Ctx) error {
	var form profileForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}

	viewer := currentUser(c)
	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:         viewer.ID,
		Username:       form.Username,
		Email:          form.Email,
		ImageURL:       form.ImageURL,
		HeaderImageURL: form.HeaderImageURL,
		Bio:            &form.Bio,
		Location:       &form.Location,
		Password:       form.Password,
	})
	if err != nil {
		var appErr *models.AppError
		if !errors.As(err, &appErr) || appErr.Code == models.CodeInternal || appErr.Code == models.CodeNotFound {
			return pageError(err)
		}
		msg := appErr.Message
		if appErr.Code == models.CodeConflict {
			msg = "Username or email already taken"
		}
		if err := s.flash(c, flashDanger, msg); err != nil {
			return err
		}
		form.Password = ""
		return s.render(c, "users/edit", fiber.Map{"Title": "Edit profile", "Form": form})
	}

	return c.Redirect(fmt.Sprintf("/users/%d", user.ID))
}

// DeleteAccount handles POST /users/delete
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	if err := s.userService.DeleteAccount(c.UserContext(), currentUserID(c)); err != nil {
		return pageError(err)
	}
	if err := s.logout(c); err != nil {
		return err
	}
	return c.Redirect("/signup")
}

// APIListUsers handles GET /api/users?q=
func (s *Server) APIListUsers(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	q := strings.TrimSpace(c.Query("q"))
	page := parsePagination(c, 20)

	users, err := s.userService.SearchUsers(ctx, q, page.Limit, page.Offset)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(users)
}

// APIGetUser handles GET /api/users/:id
func (s *Server) APIGetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	stats, err := s.userService.Stats(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":  user,
		"stats": stats,
	})
}

// APIFollowing handles GET /api/users/:id/following
func (s *Server) APIFollowing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.followService.Following(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(users)
}

// APIFollowers handles GET /api/users/:id/followers
func (s *Server) APIFollowers(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.followService.Followers(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(users)
}

// APILikes handles GET /api/users/:id/likes
func (s *Server) APILikes(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.userService.GetUserByID(c.UserContext(), id); err != nil {
		return mapServiceError(c, err)
	}
	messages, err := s.messageService.LikedBy(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(messages)
}

// APIFollow handles POST /api/users/:id/follow
func (s *Server) APIFollow(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.followService.Follow(c.UserContext(), currentUserID(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"following": true})
}

// APIUnfollow handles DELETE /api/users/:id/follow
func (s *Server) APIUnfollow(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.followService.Unfollow(c.UserContext(), currentUserID(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"following": false})
}

// APIUpdateMe handles PUT /api/users/me
func (s *Server) APIUpdateMe(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	req.UserID = currentUserID(c)

	user, err := s.userService.UpdateProfile(c.UserContext(), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// APIDeleteMe handles DELETE /api/users/me and revokes the token used.
func (s *Server) APIDeleteMe(c *fiber.Ctx) error {
	if err := s.userService.DeleteAccount(c.UserContext(), currentUserID(c)); err != nil {
		return mapServiceError(c, err)
	}
	if err := s.revokeCurrentToken(c); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
