package server

import (
	"errors"
	"log/slog"

	"warbler/internal/middleware"
	"warbler/internal/models"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized:
		return fiber.StatusForbidden
	case models.CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// mapServiceError writes the JSON error response for err.
// Errors that are not AppErrors are logged and reported as internal.
func mapServiceError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		var appErr *models.AppError
		if !errors.As(err, &appErr) || appErr.Code != models.CodeInternal {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// pageError converts a service error into the error the page handler returns:
// missing resources become 404, everything else propagates.
func pageError(err error) error {
	if models.HasCode(err, models.CodeNotFound) {
		return fiber.ErrNotFound
	}
	return err
}

// handleError is the app-wide ErrorHandler. It answers JSON under /api and
// renders an error page elsewhere.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}

	if isAPIRequest(c) {
		switch {
		case code == fiber.StatusNotFound:
			return models.RespondWithError(c, code, &models.AppError{Code: models.CodeNotFound, Message: "Not found"})
		case code >= fiber.StatusInternalServerError:
			return models.RespondWithError(c, code, models.NewInternalError(err))
		default:
			return c.Status(code).JSON(models.ErrorResponse{Error: fe.Message})
		}
	}

	page, title := "errors/500", "Error"
	if code == fiber.StatusNotFound {
		page, title = "errors/404", "Page not found"
	}
	c.Status(code)
	if rerr := c.Render(page, fiber.Map{"Title": title, "CurrentUser": currentUser(c)}); rerr != nil {
		return c.Status(code).SendString(fiber.ErrInternalServerError.Message)
	}
	return nil
}
