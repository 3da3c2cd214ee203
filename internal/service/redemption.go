package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/analytics"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/fingerprint"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/middleware"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/telegram"
)

// RedemptionOutcome describes what the redemption handler did with a signal.
type RedemptionOutcome string

const (
	// RedemptionIgnored means the signal was not a join through an invite link.
	RedemptionIgnored RedemptionOutcome = "ignored"
	// RedemptionOrphan means the link is not in the index; the join belongs to
	// a different flow or predates the index.
	RedemptionOrphan RedemptionOutcome = "orphan"
	// RedemptionNoop means the join was already recorded (or the request row
	// is gone).
	RedemptionNoop RedemptionOutcome = "noop"
	// RedemptionRecorded means the redeemer was stored on this call.
	RedemptionRecorded RedemptionOutcome = "recorded"
)

// HandleRedemption processes a chat member update from the consumption channel.
// Signals that are not joins through a known single-use link pass through
// silently; the webhook never errors on foreign traffic. The join event is
// emitted at most once per request regardless of signal redelivery.
func (l *InviteLifecycle) HandleRedemption(ctx context.Context, upd *telegram.Update) (RedemptionOutcome, error) {
	if upd == nil || upd.ChatMember == nil {
		return RedemptionIgnored, nil
	}

	member := upd.ChatMember
	if !telegram.IsPositiveMembership(member.NewChatMember.Status) {
		return RedemptionIgnored, nil
	}
	if member.InviteLink == nil || member.InviteLink.InviteLink == "" {
		return RedemptionIgnored, nil
	}
	joiner := member.NewChatMember.User.ID
	if joiner == 0 {
		return RedemptionIgnored, nil
	}

	entry, err := l.index.GetByFingerprint(ctx, fingerprint.Of(member.InviteLink.InviteLink))
	if err != nil {
		return RedemptionNoop, err
	}
	if entry == nil {
		middleware.Logger.InfoContext(ctx, "orphan redemption signal",
			slog.Int64("joined_user_id", joiner))
		return RedemptionOrphan, nil
	}

	req, err := l.requests.GetByID(ctx, entry.RequestID)
	if err != nil {
		return RedemptionNoop, err
	}
	if req == nil {
		// Index and store should never diverge; tolerate it if they do.
		return RedemptionNoop, nil
	}
	if req.JoinEventSent {
		return RedemptionNoop, nil
	}

	joinedUserID := strconv.FormatInt(joiner, 10)
	sent := l.sink.Send(ctx, req.UserID, analytics.EventInviteLinkRedeemed, map[string]any{
		"payment_ref":    req.PaymentRef,
		"invite_link":    req.InviteLink,
		"joined_user_id": joinedUserID,
	})

	if err := l.requests.RecordRedemption(ctx, req.ID, joinedUserID, sent); err != nil {
		return RedemptionNoop, err
	}

	middleware.Logger.InfoContext(ctx, "invite link redeemed",
		slog.String("request_id", req.ID),
		slog.String("joined_user_id", joinedUserID),
		slog.Bool("event_sent", sent))

	return RedemptionRecorded, nil
}
