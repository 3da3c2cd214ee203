package server

import (
	"log/slog"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/middleware"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateInviteRequest is the payload for requesting a new invite link.
type CreateInviteRequest struct {
	UserID     string `json:"user_id"`
	PaymentRef string `json:"payment_ref"`
}

// CreateInvite accepts a new invite request and queues it for issuance.
// The response is an acknowledgement; the link itself is produced async.
func (s *Server) CreateInvite(c *fiber.Ctx) error {
	var body CreateInviteRequest
	if err := c.BodyParser(&body); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("invalid request body"))
	}

	requestID, err := s.lifecycle.Create(c.Context(), body.UserID, body.PaymentRef)
	if err != nil {
		if appErr, ok := err.(*models.AppError); ok {
			return models.RespondWithError(c, fiber.StatusBadRequest, appErr)
		}
		middleware.Logger.ErrorContext(c.Context(), "failed to create invite request",
			slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted":   true,
		"status":     string(models.InviteRequestStatusQueued),
		"request_id": requestID,
	})
}

// GetInvite returns the current state of an invite request. Clients poll this
// until status is done or failed.
func (s *Server) GetInvite(c *fiber.Ctx) error {
	id := c.Params("id")

	req, err := s.lifecycle.GetRequest(c.Context(), id)
	if err != nil {
		middleware.Logger.ErrorContext(c.Context(), "failed to load invite request",
			slog.String("request_id", id),
			slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if req == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("invite request", id))
	}

	resp := fiber.Map{
		"request_id": req.ID,
		"status":     string(req.Status),
		"attempts":   req.Attempts,
		"created_at": req.CreatedAt,
		"updated_at": req.UpdatedAt,
	}
	if req.Status == models.InviteRequestStatusDone {
		resp["invite_link"] = req.InviteLink
	}
	if req.JoinedAt != nil {
		resp["joined_at"] = req.JoinedAt
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
