// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/models"

	"gorm.io/gorm"
)

// RequestRepository defines persistence operations for invite requests.
//
// The mutating operations are conditional updates: each one names the state it
// expects to find and reports whether it won. A lost conditional write is how
// concurrent worker steps and webhook redeliveries discover they should no-op.
type RequestRepository interface {
	Create(ctx context.Context, req *models.InviteRequest) error
	GetByID(ctx context.Context, id string) (*models.InviteRequest, error)

	// ClaimForProcessing moves the request to processing and bumps attempts to
	// nextAttempts. It succeeds only when the stored attempts counter still
	// matches nextAttempts-1 and the request is queued, or is processing but
	// stale (abandoned by a worker that died before updating it again).
	ClaimForProcessing(ctx context.Context, id string, nextAttempts int, staleBefore time.Time) (bool, error)

	// Requeue reverts a processing request to queued ahead of a delayed retry.
	Requeue(ctx context.Context, id string) error

	// MarkDone finishes a processing request with its issued link. Terminal.
	MarkDone(ctx context.Context, id, inviteLink string) (bool, error)

	// MarkFailed abandons a request that exhausted its attempts. Terminal.
	MarkFailed(ctx context.Context, id string) error

	// SetLinkEventSent latches the issued-event flag. One-way.
	SetLinkEventSent(ctx context.Context, id string) error

	// RecordRedemption stores the redeemer and latches the join-event flag if
	// eventSent is true. The redeemer columns are written at most once; after
	// that only the event flag can still latch, and only for the stored
	// redeemer.
	RecordRedemption(ctx context.Context, id, joinedUserID string, eventSent bool) error
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository returns a new RequestRepository implementation.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *models.InviteRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*models.InviteRequest, error) {
	var req models.InviteRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *requestRepository) ClaimForProcessing(ctx context.Context, id string, nextAttempts int, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InviteRequest{}).
		Where("id = ? AND attempts = ? AND (status = ? OR (status = ? AND updated_at < ?))",
			id, nextAttempts-1,
			models.InviteRequestStatusQueued,
			models.InviteRequestStatusProcessing, staleBefore,
		).
		Updates(map[string]any{
			"status":   models.InviteRequestStatusProcessing,
			"attempts": nextAttempts,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *requestRepository) Requeue(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.InviteRequest{}).
		Where("id = ? AND status = ?", id, models.InviteRequestStatusProcessing).
		Update("status", models.InviteRequestStatusQueued)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	return nil
}

func (r *requestRepository) MarkDone(ctx context.Context, id, inviteLink string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InviteRequest{}).
		Where("id = ? AND status = ?", id, models.InviteRequestStatusProcessing).
		Updates(map[string]any{
			"status":      models.InviteRequestStatusDone,
			"invite_link": inviteLink,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *requestRepository) MarkFailed(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.InviteRequest{}).
		Where("id = ? AND status NOT IN ?", id, []models.InviteRequestStatus{
			models.InviteRequestStatusDone,
			models.InviteRequestStatusFailed,
		}).
		Update("status", models.InviteRequestStatusFailed)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	return nil
}

func (r *requestRepository) SetLinkEventSent(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.InviteRequest{}).
		Where("id = ? AND link_event_sent = ?", id, false).
		Update("link_event_sent", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	return nil
}

func (r *requestRepository) RecordRedemption(ctx context.Context, id, joinedUserID string, eventSent bool) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.InviteRequest{}).
		Where("id = ? AND join_event_sent = ? AND joined_user_id = ?", id, false, "").
		Updates(map[string]any{
			"join_event_sent": eventSent,
			"joined_user_id":  joinedUserID,
			"joined_at":       &now,
		})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 || !eventSent {
		return nil
	}

	// The redeemer is already stored from an earlier signal. Only the event
	// flag is repairable, and only for that same redeemer.
	res = r.db.WithContext(ctx).
		Model(&models.InviteRequest{}).
		Where("id = ? AND join_event_sent = ? AND joined_user_id = ?", id, false, joinedUserID).
		Update("join_event_sent", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	return nil
}
