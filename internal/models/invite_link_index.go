package models

import "time"

// InviteLinkIndex maps the fingerprint of an issued invite link back to the
// request that produced it. Raw links are long and must not be guessable from
// the index key, so the key is a one-way hash rather than the link itself.
//
// Rows are write-once: exactly one entry is created per issued link, before the
// owning request becomes visible as done, and never updated afterwards.
type InviteLinkIndex struct {
	Fingerprint string    `gorm:"type:varchar(64);primaryKey" json:"fingerprint"`
	RequestID   string    `gorm:"type:varchar(36);not null;index" json:"request_id"`
	UserID      string    `gorm:"size:64;not null" json:"user_id"`
	PaymentRef  string    `gorm:"size:128;not null" json:"payment_ref"`
	CreatedAt   time.Time `json:"created_at"`
}
