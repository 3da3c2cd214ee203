package repository

import (
	"context"
	"testing"

	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/fingerprint"
	"github.com/testbookautomation/final-telegram-paid-community-handler-for-larger-requests/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkIndexRoundTrip(t *testing.T) {
	repo := NewLinkIndexRepository(setupTestDB(t))
	ctx := context.Background()

	fp := fingerprint.Of("https://t.me/+roundtrip")
	entry := &models.InviteLinkIndex{
		Fingerprint: fp,
		RequestID:   "req-1",
		UserID:      "user-1",
		PaymentRef:  "pay-1",
	}
	require.NoError(t, repo.Create(ctx, entry))

	got, err := repo.GetByFingerprint(ctx, fp)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "pay-1", got.PaymentRef)
}

func TestLinkIndexUnknownFingerprintReturnsNil(t *testing.T) {
	repo := NewLinkIndexRepository(setupTestDB(t))

	got, err := repo.GetByFingerprint(context.Background(), fingerprint.Of("https://t.me/+never-issued"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLinkIndexDuplicateWriteIsNoop(t *testing.T) {
	repo := NewLinkIndexRepository(setupTestDB(t))
	ctx := context.Background()

	fp := fingerprint.Of("https://t.me/+duplicate")
	require.NoError(t, repo.Create(ctx, &models.InviteLinkIndex{
		Fingerprint: fp,
		RequestID:   "req-1",
		UserID:      "user-1",
		PaymentRef:  "pay-1",
	}))

	// A redelivered worker step writes the same entry again.
	require.NoError(t, repo.Create(ctx, &models.InviteLinkIndex{
		Fingerprint: fp,
		RequestID:   "req-1",
		UserID:      "user-1",
		PaymentRef:  "pay-1",
	}))

	got, err := repo.GetByFingerprint(ctx, fp)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "req-1", got.RequestID)
}
