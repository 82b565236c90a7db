// Package domain contains the invitation entity and its status machine.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusAccepted Status = "ACCEPTED"
	StatusExpired  Status = "EXPIRED"
	StatusRevoked  Status = "REVOKED"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusExpired, StatusRevoked:
		return true
	default:
		return false
	}
}

// Invitation is a token-bound invite into a household. Rows are never
// physically deleted; the status column records the lifecycle outcome.
type Invitation struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	HouseholdID snowflake.ID `gorm:"not null;index" json:"household_id"`
	Email       string       `gorm:"type:text;not null;index" json:"email"`
	Token       string       `gorm:"type:text;not null;uniqueIndex:ux_invitations_token" json:"-"`
	Status      Status       `gorm:"type:text;not null" json:"status"`
	InvitedBy   snowflake.ID `gorm:"column:invited_by;not null" json:"invited_by"`
	ExpiresAt   time.Time    `gorm:"not null" json:"expires_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "household_invitations" }

// NewActive validates and builds an invitation in ACTIVE status.
func NewActive(id, householdID snowflake.ID, email, token string, invitedBy snowflake.ID, expiresAt time.Time) (Invitation, error) {
	if id == 0 || householdID == 0 {
		return Invitation{}, ErrInvalidInvitation
	}
	email = NormalizeEmail(email)
	if email == "" {
		return Invitation{}, ErrInvalidEmail
	}
	if strings.TrimSpace(token) == "" || expiresAt.IsZero() {
		return Invitation{}, ErrInvalidInvitation
	}

	now := time.Now().UTC()
	return Invitation{
		ID:          id,
		HouseholdID: householdID,
		Email:       email,
		Token:       token,
		Status:      StatusActive,
		InvitedBy:   invitedBy,
		ExpiresAt:   expiresAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsExpired reports whether now is strictly after the expiry timestamp.
func (i Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsActive reports whether the invitation can still be accepted at now.
func (i Invitation) IsActive(now time.Time) bool {
	return i.Status == StatusActive && !i.IsExpired(now)
}

// Accept transitions ACTIVE to ACCEPTED. It fails on a terminal status
// or an expired invitation.
func (i *Invitation) Accept(now time.Time) error {
	if !i.IsActive(now) {
		return ErrNotActive
	}
	i.Status = StatusAccepted
	i.UpdatedAt = now.UTC()
	return nil
}

// Revoke transitions ACTIVE to REVOKED. It fails on a terminal status.
func (i *Invitation) Revoke(now time.Time) error {
	if i.Status != StatusActive {
		return ErrNotActive
	}
	i.Status = StatusRevoked
	i.UpdatedAt = now.UTC()
	return nil
}

// Expire transitions an overdue ACTIVE invitation to EXPIRED and reports
// whether the status changed. Anything else is a no-op.
func (i *Invitation) Expire(now time.Time) bool {
	if i.Status != StatusActive || !i.IsExpired(now) {
		return false
	}
	i.Status = StatusExpired
	i.UpdatedAt = now.UTC()
	return true
}

// NormalizeEmail lowercases and trims an invitee address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
