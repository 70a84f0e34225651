package handlers

import (
	"context"

	"github.com/adlaunch/backend/internal/http/dto"
	"github.com/adlaunch/backend/internal/middleware"
	"github.com/adlaunch/backend/internal/models"
	"github.com/adlaunch/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AdHandler struct {
	adService      *services.AdService
	publishService *services.PublishService
	log            *zap.Logger
}

func NewAdHandler(adService *services.AdService, publishService *services.PublishService, log *zap.Logger) *AdHandler {
	return &AdHandler{adService: adService, publishService: publishService, log: log}
}

func (h *AdHandler) CreateAd(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	var req dto.CreateAdRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	ad, err := h.adService.Create(c.UserContext(), campaignID, middleware.GetUserID(c), req.Name)
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: ad})
}

func (h *AdHandler) ListAds(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	ads, err := h.adService.ListByCampaign(c.UserContext(), campaignID, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ads})
}

func (h *AdHandler) GetAd(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid ad id"})
	}

	ad, err := h.adService.Get(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ad})
}

// CanPublish is the dry run of Publish.
func (h *AdHandler) CanPublish(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid ad id"})
	}

	out, err := h.publishService.Readiness(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.ValidationResponse{
		OK:      out.Allowed,
		Errors:  out.Errors,
		Summary: dto.Summarize(out.Errors),
		Data:    out,
	})
}

// Publish answers 422 when validation blocks, 502 when the platform refused the ad.
func (h *AdHandler) Publish(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid ad id"})
	}

	out, err := h.publishService.Publish(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err, h.log)
	}

	resp := dto.ValidationResponse{
		OK:      out.Allowed && out.Published,
		Errors:  out.Errors,
		Summary: dto.Summarize(out.Errors),
		Data:    out,
	}
	switch {
	case !out.Allowed:
		resp.Error = "ad is not ready to publish"
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	case out.PublishErr != nil:
		resp.Error = out.PublishErr.Error()
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}
	return c.JSON(resp)
}

func (h *AdHandler) PauseAd(c *fiber.Ctx) error {
	return h.lifecycle(c, h.adService.Pause)
}

func (h *AdHandler) ResumeAd(c *fiber.Ctx) error {
	return h.lifecycle(c, h.adService.Resume)
}

func (h *AdHandler) ArchiveAd(c *fiber.Ctx) error {
	return h.lifecycle(c, h.adService.Archive)
}

func (h *AdHandler) ReturnToDraft(c *fiber.Ctx) error {
	return h.lifecycle(c, h.adService.ReturnToDraft)
}

func (h *AdHandler) lifecycle(c *fiber.Ctx, op func(ctx context.Context, adID, userID uuid.UUID) (*models.Ad, error)) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid ad id"})
	}

	ad, err := op(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ad})
}

func (h *AdHandler) UpdateSelection(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid ad id"})
	}

	var req dto.UpdateSelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	ad, err := h.adService.UpdateSelection(c.UserContext(), id, middleware.GetUserID(c), req.CopyIndex, req.CreativeIndex)
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ad})
}

func (h *AdHandler) DeleteAd(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid ad id"})
	}

	deleted, archived, err := h.adService.Delete(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.DeleteAdResponse{Deleted: deleted, Archived: archived}})
}

func (h *AdHandler) GetAdEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid ad id"})
	}

	logs, err := h.adService.GetEvents(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}
