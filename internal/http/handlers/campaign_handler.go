package handlers

import (
	"errors"
	"strconv"

	"github.com/adlaunch/backend/internal/http/dto"
	"github.com/adlaunch/backend/internal/middleware"
	"github.com/adlaunch/backend/internal/models"
	"github.com/adlaunch/backend/internal/repositories"
	"github.com/adlaunch/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaignService   *services.CampaignService
	connectionService *services.ConnectionService
	log               *zap.Logger
}

func NewCampaignHandler(campaignService *services.CampaignService, connectionService *services.ConnectionService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService, connectionService: connectionService, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	campaign := &models.Campaign{Name: req.Name}
	if req.Setup != nil {
		campaign.Setup.Apply(*req.Setup)
	}

	userID := middleware.GetUserID(c)
	if err := h.campaignService.Create(c.UserContext(), userID, campaign); err != nil {
		return respondError(c, err, h.log)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	userID := middleware.GetUserID(c)
	campaign, err := h.campaignService.GetByID(c.UserContext(), id, userID)
	if err != nil {
		return respondError(c, err, h.log)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := repositories.CampaignFilter{
		Limit:  20,
		Offset: 0,
	}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("q"); v != "" {
		filter.Search = &v
	}

	campaigns, err := h.campaignService.List(c.UserContext(), userID, filter)
	if err != nil {
		return respondError(c, err, h.log)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

func (h *CampaignHandler) UpdateCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	var req dto.UpdateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	userID := middleware.GetUserID(c)
	updated, err := h.campaignService.Update(c.UserContext(), id, userID, req.Name)
	if err != nil {
		return respondError(c, err, h.log)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

// UpdateSetup saves the sections in the body and answers with the fresh validation,
// including non-blocking warnings.
func (h *CampaignHandler) UpdateSetup(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	var req dto.UpdateSetupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	userID := middleware.GetUserID(c)
	campaign, validation, err := h.campaignService.UpdateSetup(c.UserContext(), id, userID, req)
	if err != nil {
		return respondError(c, err, h.log)
	}

	return c.JSON(dto.ValidationResponse{
		OK:      true,
		Errors:  validation.Errors,
		Summary: dto.Summarize(validation.Errors),
		Data:    fiber.Map{"campaign": campaign, "validation": validation},
	})
}

// Readiness reports campaign validation and completed setup steps without calling the ad platform.
func (h *CampaignHandler) Readiness(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	userID := middleware.GetUserID(c)
	validation, err := h.campaignService.Validate(c.UserContext(), id, userID)
	if err != nil {
		return respondError(c, err, h.log)
	}

	conn, err := h.connectionService.Get(c.UserContext(), id, userID)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return respondError(c, err, h.log)
	}

	steps := models.CompletedSteps(validation.HasGoal, validation.HasLocation, validation.HasBudget,
		validation.HasAdCopy, validation.HasImages, conn)

	return c.JSON(dto.ValidationResponse{
		OK:      !models.HasCritical(validation.Errors),
		Errors:  validation.Errors,
		Summary: dto.Summarize(validation.Errors),
		Data:    fiber.Map{"validation": validation, "completed_steps": steps},
	})
}

func (h *CampaignHandler) DeleteCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	userID := middleware.GetUserID(c)
	if err := h.campaignService.Delete(c.UserContext(), id, userID); err != nil {
		return respondError(c, err, h.log)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}
