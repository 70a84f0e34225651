package handlers

import (
	"github.com/adlaunch/backend/internal/http/dto"
	"github.com/adlaunch/backend/internal/middleware"
	"github.com/adlaunch/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ConnectionHandler struct {
	connectionService *services.ConnectionService
	log               *zap.Logger
}

func NewConnectionHandler(connectionService *services.ConnectionService, log *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{connectionService: connectionService, log: log}
}

func (h *ConnectionHandler) GetConnection(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	conn, err := h.connectionService.Get(c.UserContext(), campaignID, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conn})
}

func (h *ConnectionHandler) Connect(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	var req dto.ConnectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	conn, err := h.connectionService.Connect(c.UserContext(), campaignID, middleware.GetUserID(c), services.ConnectInput{
		AccessToken:    req.AccessToken,
		TokenExpiresAt: req.TokenExpiresAt,
	})
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conn})
}

func (h *ConnectionHandler) SelectAssets(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	var req dto.SelectAssetsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	conn, err := h.connectionService.SelectAssets(c.UserContext(), campaignID, middleware.GetUserID(c), services.AssetSelection{
		BusinessID:        req.BusinessID,
		BusinessName:      req.BusinessName,
		AdAccountID:       req.AdAccountID,
		AdAccountName:     req.AdAccountName,
		AdAccountCurrency: req.AdAccountCurrency,
		PageID:            req.PageID,
		InstagramID:       req.InstagramID,
	})
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conn})
}

func (h *ConnectionHandler) Disconnect(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	if err := h.connectionService.Disconnect(c.UserContext(), campaignID, middleware.GetUserID(c)); err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// VerifyFunding always answers 200 with the findings; a failed check is data, not an error.
func (h *ConnectionHandler) VerifyFunding(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	var req dto.VerifyFundingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
		}
	}

	check, err := h.connectionService.VerifyFunding(c.UserContext(), campaignID, middleware.GetUserID(c), req.PaymentConfirmed)
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.ValidationResponse{
		OK:      check.HasFunding,
		Errors:  check.Errors,
		Summary: dto.Summarize(check.Errors),
		Data:    check,
	})
}

func (h *ConnectionHandler) VerifyAdmin(c *fiber.Ctx) error {
	campaignID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	access, err := h.connectionService.VerifyAdmin(c.UserContext(), campaignID, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err, h.log)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: access})
}
