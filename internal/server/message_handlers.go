package server

import (
	"errors"
	"fmt"

	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/service"

	"github.com/gofiber/fiber/v2"
)

type messageForm struct {
	Text string `form:"text" json:"text"`
}

// MessageNewPage handles GET /messages/new
func (s *Server) MessageNewPage(c *fiber.Ctx) error {
	return s.render(c, "messages/new", fiber.Map{"Title": "New message"})
}

// MessageNewSubmit handles POST /messages/new
func (s *Server) MessageNewSubmit(c *fiber.Ctx) error {
	var form messageForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}

	viewer := currentUser(c)
	if _, err := s.messageService.PostMessage(c.UserContext(), viewer.ID, form.Text); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
			c.Status(fiber.StatusBadRequest)
			return s.render(c, "messages/new", fiber.Map{
				"Title": "New message",
				"Error": appErr.Message,
				"Text":  form.Text,
			})
		}
		return err
	}
	return c.Redirect(fmt.Sprintf("/users/%d", viewer.ID))
}

// MessageShow handles GET /messages/:id
func (s *Server) MessageShow(c *fiber.Ctx) error {
	id, err := pageID(c, "id")
	if err != nil {
		return err
	}
	viewerID := currentUserID(c)
	msg, err := s.messageService.GetMessage(c.UserContext(), id, viewerID)
	if err != nil {
		return pageError(err)
	}
	return s.render(c, "messages/show", fiber.Map{
		"Title":    "Message",
		"Message":  msg,
		"IsAuthor": viewerID != 0 && msg.UserID == viewerID,
	})
}

// MessageDelete handles POST /messages/:id/delete. Missing messages and other
// users' messages are refused the same way.
func (s *Server) MessageDelete(c *fiber.Ctx) error {
	id, err := pageID(c, "id")
	if err != nil {
		return err
	}
	viewer := currentUser(c)
	if err := s.messageService.DeleteMessage(c.UserContext(), id, viewer.ID); err != nil {
		if !models.HasCode(err, models.CodeUnauthorized) {
			return err
		}
		observability.AccessDenied.WithLabelValues("web").Inc()
		if err := s.flash(c, flashDanger, msgAccessUnauthorized); err != nil {
			return err
		}
		return c.Redirect("/")
	}
	return c.Redirect(fmt.Sprintf("/users/%d", viewer.ID))
}

// APITimeline handles GET /api/messages
func (s *Server) APITimeline(c *fiber.Ctx) error {
	page := parsePagination(c, service.TimelineLimit)
	messages, err := s.messageService.Timeline(c.UserContext(), currentUserID(c), page.Limit)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(messages)
}

// APICreateMessage handles POST /api/messages
func (s *Server) APICreateMessage(c *fiber.Ctx) error {
	var req messageForm
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.messageService.PostMessage(c.UserContext(), currentUserID(c), req.Text)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// APIGetMessage handles GET /api/messages/:id. A bearer token is optional
// and only affects the liked flag.
func (s *Server) APIGetMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	msg, err := s.messageService.GetMessage(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(msg)
}

// APIDeleteMessage handles DELETE /api/messages/:id
func (s *Server) APIDeleteMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.messageService.DeleteMessage(c.UserContext(), id, currentUserID(c)); err != nil {
		if models.HasCode(err, models.CodeUnauthorized) {
			observability.AccessDenied.WithLabelValues("api").Inc()
		}
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// APIToggleLike handles POST /api/messages/:id/like
func (s *Server) APIToggleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	liked, err := s.messageService.ToggleLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	count, err := s.messageService.LikeCount(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"liked":       liked,
		"likes_count": count,
	})
}
