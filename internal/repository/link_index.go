package repository

import (
	"context"
	"errors"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkIndexRepository defines persistence operations for the invite link index.
type LinkIndexRepository interface {
	// Create writes an index entry. Writing the same fingerprint twice is a
	// no-op so a redelivered worker step cannot fail on the duplicate key.
	Create(ctx context.Context, entry *models.InviteLinkIndex) error

	// GetByFingerprint returns the entry for a fingerprint, or nil if unknown.
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.InviteLinkIndex, error)
}

type linkIndexRepository struct {
	db *gorm.DB
}

// NewLinkIndexRepository returns a new LinkIndexRepository implementation.
func NewLinkIndexRepository(db *gorm.DB) LinkIndexRepository {
	return &linkIndexRepository{db: db}
}

func (r *linkIndexRepository) Create(ctx context.Context, entry *models.InviteLinkIndex) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *linkIndexRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*models.InviteLinkIndex, error) {
	var entry models.InviteLinkIndex
	if err := r.db.WithContext(ctx).First(&entry, "fingerprint = ?", fingerprint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &entry, nil
}
