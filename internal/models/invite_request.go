package models

import "time"

// InviteRequestStatus defines lifecycle states for invite link requests.
type InviteRequestStatus string

const (
	// InviteRequestStatusQueued indicates the request is waiting for a worker step.
	InviteRequestStatusQueued InviteRequestStatus = "queued"
	// InviteRequestStatusProcessing indicates a worker step is issuing the link.
	InviteRequestStatusProcessing InviteRequestStatus = "processing"
	// InviteRequestStatusDone indicates a single-use link was issued. Terminal.
	InviteRequestStatusDone InviteRequestStatus = "done"
	// InviteRequestStatusFailed indicates the attempt ceiling was exhausted. Terminal.
	InviteRequestStatusFailed InviteRequestStatus = "failed"
)

// Terminal reports whether the status never transitions again.
func (s InviteRequestStatus) Terminal() bool {
	return s == InviteRequestStatusDone || s == InviteRequestStatusFailed
}

// InviteRequest is one user's ask for a single-use community invite link.
//
// Attempts only ever grows; the link and the two event-sent flags are one-way:
// once set they are never cleared, which is what makes worker redelivery and
// webhook redelivery safe.
type InviteRequest struct {
	ID            string              `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string              `gorm:"size:64;not null;index" json:"user_id"`
	PaymentRef    string              `gorm:"size:128;not null" json:"payment_ref"`
	Status        InviteRequestStatus `gorm:"type:varchar(20);not null;default:'queued';index" json:"status"`
	Attempts      int                 `gorm:"not null;default:0" json:"attempts"`
	InviteLink    string              `gorm:"type:text" json:"invite_link,omitempty"`
	LinkEventSent bool                `gorm:"not null;default:false" json:"link_event_sent"`
	JoinEventSent bool                `gorm:"not null;default:false" json:"join_event_sent"`
	JoinedUserID  string              `gorm:"size:64" json:"joined_user_id,omitempty"`
	JoinedAt      *time.Time          `json:"joined_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}
