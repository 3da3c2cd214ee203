package server

import (
	"log/slog"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/middleware"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/models"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/service"

	"github.com/gofiber/fiber/v2"
)

// WorkerStepRequest is the dispatcher's delivery payload.
type WorkerStepRequest struct {
	RequestID string `json:"request_id"`
}

// WorkerStep runs one issuance step for the named request. Any 2xx response
// acknowledges the task to the dispatcher; a 5xx leaves the task queued so it
// is delivered again.
func (s *Server) WorkerStep(c *fiber.Ctx) error {
	var body WorkerStepRequest
	if err := c.BodyParser(&body); err != nil || body.RequestID == "" {
		// Malformed deliveries can never succeed on redelivery, ack them.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"outcome": "discarded",
		})
	}

	outcome, err := s.lifecycle.ProcessStep(c.Context(), body.RequestID)
	if err != nil {
		// Storage errors only, the step may have done nothing. Refuse the ack
		// so the dispatcher redelivers.
		middleware.Logger.ErrorContext(c.Context(), "worker step failed",
			slog.String("request_id", body.RequestID),
			slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"outcome": outcomeLabel(outcome),
	})
}

func outcomeLabel(o service.StepOutcome) string {
	switch o {
	case service.StepRetryScheduled:
		return "retry_scheduled"
	case service.StepDone:
		return "done"
	case service.StepFailed:
		return "failed"
	default:
		return "noop"
	}
}
