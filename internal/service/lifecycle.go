// Package service implements the invite request lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/analytics"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/fingerprint"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/middleware"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/models"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/repository"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/scheduler"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/telegram"

	"github.com/google/uuid"
)

// StepOutcome describes what one worker step did. The worker endpoint reports
// it in the acknowledgement body; the scheduler does not act on it.
type StepOutcome string

const (
	// StepNoop means the step found nothing to do (unknown request, terminal
	// request, or a concurrent step holds the claim).
	StepNoop StepOutcome = "noop"
	// StepRetryScheduled means issuance did not complete and a delayed step
	// was queued.
	StepRetryScheduled StepOutcome = "retry_scheduled"
	// StepDone means a link was issued and the request is complete.
	StepDone StepOutcome = "done"
	// StepFailed means the request exhausted its attempt ceiling.
	StepFailed StepOutcome = "failed"
)

// LifecycleConfig tunes the controller.
type LifecycleConfig struct {
	// MaxAttempts is the issuance attempt ceiling; past it a request fails
	// terminally.
	MaxAttempts int

	// RetryFallback is the reschedule delay when the issuer gives no wait hint.
	RetryFallback time.Duration

	// StaleClaimAfter is how long a processing claim may sit untouched before
	// another step is allowed to take it over. Covers workers that died
	// mid-step and never requeued.
	StaleClaimAfter time.Duration
}

func (c LifecycleConfig) withDefaults() LifecycleConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 50
	}
	if c.RetryFallback <= 0 {
		c.RetryFallback = 10 * time.Second
	}
	if c.StaleClaimAfter <= 0 {
		c.StaleClaimAfter = 2 * time.Minute
	}
	return c
}

// InviteLifecycle owns every status transition of an invite request. External
// collaborators (issuer, scheduler, sink) are narrow interfaces; all their
// failures are absorbed here into either a delayed retry or a terminal state.
type InviteLifecycle struct {
	requests  repository.RequestRepository
	index     repository.LinkIndexRepository
	issuer    telegram.Issuer
	scheduler scheduler.Scheduler
	sink      analytics.Sink
	cfg       LifecycleConfig
}

// NewInviteLifecycle wires the controller with its collaborators.
func NewInviteLifecycle(
	requests repository.RequestRepository,
	index repository.LinkIndexRepository,
	issuer telegram.Issuer,
	sched scheduler.Scheduler,
	sink analytics.Sink,
	cfg LifecycleConfig,
) *InviteLifecycle {
	return &InviteLifecycle{
		requests:  requests,
		index:     index,
		issuer:    issuer,
		scheduler: sched,
		sink:      sink,
		cfg:       cfg.withDefaults(),
	}
}

// Create registers a new invite request and queues its first worker step.
// It returns as soon as the request is persisted; issuance happens async.
func (l *InviteLifecycle) Create(ctx context.Context, userID, paymentRef string) (string, error) {
	if userID == "" {
		return "", models.NewValidationError("user_id is required")
	}

	req := &models.InviteRequest{
		ID:         uuid.NewString(),
		UserID:     userID,
		PaymentRef: paymentRef,
		Status:     models.InviteRequestStatusQueued,
	}
	if err := l.requests.Create(ctx, req); err != nil {
		return "", err
	}

	if err := l.scheduler.Schedule(ctx, req.ID, 0); err != nil {
		return "", models.NewInternalError(fmt.Errorf("failed to schedule worker step: %w", err))
	}

	middleware.Logger.InfoContext(ctx, "invite request queued",
		slog.String("request_id", req.ID), slog.String("user_id", userID))

	return req.ID, nil
}

// ProcessStep runs one issuance attempt for a request. Safe under at-least-once
// redelivery: terminal and unknown requests are a no-op, a concurrent claim on
// the same request loses and no-ops, and attempts only ever grow.
//
// Only storage failures are returned; they make the worker endpoint refuse the
// acknowledgement so the scheduler delivers the step again. Issuer failures are
// absorbed into a delayed reschedule.
func (l *InviteLifecycle) ProcessStep(ctx context.Context, requestID string) (StepOutcome, error) {
	req, err := l.requests.GetByID(ctx, requestID)
	if err != nil {
		return StepNoop, err
	}
	if req == nil || req.Status.Terminal() {
		return StepNoop, nil
	}

	nextAttempts := req.Attempts + 1
	if nextAttempts > l.cfg.MaxAttempts {
		if err := l.requests.MarkFailed(ctx, requestID); err != nil {
			return StepNoop, err
		}
		middleware.RequestsExhausted.Inc()
		middleware.Logger.WarnContext(ctx, "invite request exhausted attempts",
			slog.String("request_id", requestID), slog.Int("attempts", req.Attempts))
		return StepFailed, nil
	}

	staleBefore := time.Now().Add(-l.cfg.StaleClaimAfter)
	claimed, err := l.requests.ClaimForProcessing(ctx, requestID, nextAttempts, staleBefore)
	if err != nil {
		return StepNoop, err
	}
	if !claimed {
		// Lost the conditional update: a concurrent step owns the request or
		// it just went terminal. The owner may still die before finishing, so
		// queue a step past the staleness window to take the claim over if it
		// does. On a terminal request that step is a no-op.
		if err := l.scheduler.Schedule(ctx, requestID, l.cfg.StaleClaimAfter); err != nil {
			return StepNoop, models.NewInternalError(fmt.Errorf("failed to schedule takeover step: %w", err))
		}
		return StepNoop, nil
	}

	label := IssuanceLabel(req.UserID, req.PaymentRef, requestID, nextAttempts)

	link, err := l.issuer.CreateInviteLink(ctx, label)
	if err != nil {
		return l.rescheduleAfterIssuerFailure(ctx, requestID, err)
	}
	middleware.IssuanceAttempts.WithLabelValues("issued").Inc()

	// Index entry first: a join signal must be resolvable the moment the
	// request becomes visible as done.
	entry := &models.InviteLinkIndex{
		Fingerprint: fingerprint.Of(link),
		RequestID:   requestID,
		UserID:      req.UserID,
		PaymentRef:  req.PaymentRef,
	}
	if err := l.index.Create(ctx, entry); err != nil {
		return StepNoop, err
	}

	done, err := l.requests.MarkDone(ctx, requestID, link)
	if err != nil {
		return StepNoop, err
	}
	if !done {
		// Someone else completed the request while we were issuing.
		return StepNoop, nil
	}

	middleware.Logger.InfoContext(ctx, "invite link issued",
		slog.String("request_id", requestID), slog.Int("attempts", nextAttempts))

	if !req.LinkEventSent {
		sent := l.sink.Send(ctx, req.UserID, analytics.EventInviteLinkIssued, map[string]any{
			"payment_ref": req.PaymentRef,
			"invite_link": link,
		})
		if sent {
			if err := l.requests.SetLinkEventSent(ctx, requestID); err != nil {
				// The link is issued either way; a lost flag means the event
				// may repeat on an operator replay, which the sink tolerates.
				middleware.Logger.WarnContext(ctx, "failed to latch link event flag",
					slog.String("request_id", requestID), slog.String("error", err.Error()))
			}
		}
	}

	return StepDone, nil
}

// rescheduleAfterIssuerFailure reverts the claim and queues a delayed retry.
// Rate-limit responses use the issuer's wait hint; everything else uses the
// fallback delay. The attempt stays counted either way, which bounds total
// retry volume under sustained limiting.
func (l *InviteLifecycle) rescheduleAfterIssuerFailure(ctx context.Context, requestID string, issuerErr error) (StepOutcome, error) {
	delay := l.cfg.RetryFallback

	var rle *telegram.RateLimitedError
	if errors.As(issuerErr, &rle) {
		middleware.IssuanceAttempts.WithLabelValues("rate_limited").Inc()
		if rle.RetryAfter > 0 {
			delay = rle.RetryAfter
		}
	} else {
		middleware.IssuanceAttempts.WithLabelValues("error").Inc()
	}

	middleware.Logger.WarnContext(ctx, "invite link issuance failed, rescheduling",
		slog.String("request_id", requestID),
		slog.Duration("delay", delay),
		slog.String("error", issuerErr.Error()))

	// Back to queued so a status poll during the retry window reads "will
	// retry", not "stuck processing".
	if err := l.requests.Requeue(ctx, requestID); err != nil {
		return StepNoop, err
	}
	if err := l.scheduler.Schedule(ctx, requestID, delay); err != nil {
		return StepNoop, models.NewInternalError(fmt.Errorf("failed to schedule retry: %w", err))
	}

	return StepRetryScheduled, nil
}

// IssuanceLabel derives the human-traceable name attached to an issued link so
// chat admins can trace a link back to who asked for it and on which attempt.
// Truncated to the issuer's name length limit.
func IssuanceLabel(userID, paymentRef, requestID string, attempt int) string {
	short := requestID
	if len(short) > 8 {
		short = short[:8]
	}
	label := fmt.Sprintf("%s|%s|%s|a%d", userID, paymentRef, short, attempt)
	if len(label) > telegram.InviteLinkNameLimit {
		label = label[:telegram.InviteLinkNameLimit]
	}
	return label
}

// GetRequest returns the stored request, or nil when unknown.
func (l *InviteLifecycle) GetRequest(ctx context.Context, requestID string) (*models.InviteRequest, error) {
	return l.requests.GetByID(ctx, requestID)
}
