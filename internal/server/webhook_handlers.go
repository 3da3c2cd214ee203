package server

import (
	"log/slog"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/middleware"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/service"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/telegram"

	"github.com/gofiber/fiber/v2"
)

// TelegramWebhook receives chat member updates from the Bot API. It always
// returns 200 so Telegram does not retry deliveries; failures are logged and a
// later membership audit can reconcile.
func (s *Server) TelegramWebhook(c *fiber.Ctx) error {
	var update telegram.Update
	if err := c.BodyParser(&update); err != nil {
		middleware.Logger.WarnContext(c.Context(), "unparseable webhook update",
			slog.String("error", err.Error()))
		return c.SendStatus(fiber.StatusOK)
	}

	outcome, err := s.lifecycle.HandleRedemption(c.Context(), &update)
	if err != nil {
		middleware.Logger.ErrorContext(c.Context(), "failed to handle redemption",
			slog.Int64("update_id", update.UpdateID),
			slog.String("error", err.Error()))
		return c.SendStatus(fiber.StatusOK)
	}

	if outcome == service.RedemptionOrphan {
		middleware.Logger.WarnContext(c.Context(), "join via unknown invite link",
			slog.Int64("update_id", update.UpdateID))
	}

	return c.SendStatus(fiber.StatusOK)
}
