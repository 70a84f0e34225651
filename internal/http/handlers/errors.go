package handlers

import (
	"errors"

	"github.com/adlaunch/backend/internal/http/dto"
	"github.com/adlaunch/backend/internal/middleware"
	"github.com/adlaunch/backend/internal/models"
	"github.com/adlaunch/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps service errors onto HTTP statuses. Unknown errors are logged and hidden.
func respondError(c *fiber.Ctx, err error, log *zap.Logger) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)

	var te *models.TransitionError
	switch {
	case errors.As(err, &te):
		ve := te.ValidationError()
		return c.Status(fiber.StatusConflict).JSON(dto.ValidationResponse{
			Error:   err.Error(),
			Errors:  []models.ValidationError{ve},
			Summary: dto.Summarize([]models.ValidationError{ve}),
		})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "not found", RequestID: reqID})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	case errors.Is(err, services.ErrGoalLocked):
		field := "goal"
		ve := models.ValidationError{Code: models.CodeGoalLocked, Field: &field, Message: err.Error(), Severity: models.SeverityError}
		return c.Status(fiber.StatusConflict).JSON(dto.ValidationResponse{
			Error:   err.Error(),
			Errors:  []models.ValidationError{ve},
			Summary: dto.Summarize([]models.ValidationError{ve}),
		})
	case errors.Is(err, services.ErrStatusConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	case errors.Is(err, services.ErrNotConnected):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	case errors.Is(err, services.ErrPlatformUpdate), errors.Is(err, services.ErrPlatformPublish):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
	}

	log.Error("request failed",
		zap.String("request_id", reqID),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error", RequestID: reqID})
}
