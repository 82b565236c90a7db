package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, householdID, actingUserID snowflake.ID, req CreateInviteRequest) (*InviteResponse, error)
	Accept(ctx context.Context, token string, acceptingUserID snowflake.ID) (*AcceptResponse, error)
	Revoke(ctx context.Context, householdID, actingUserID, invitationID snowflake.ID) (bool, error)
	ListByHousehold(ctx context.Context, householdID, actingUserID snowflake.ID, page pagination.Pagination) ([]InviteListItem, *pagination.PageInfo, error)
	ExpireStale(ctx context.Context) (int, error)
}

type CreateInviteRequest struct {
	Email string
	TTL   time.Duration
}

type InviteResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	Status    Status    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AcceptResponse struct {
	HouseholdID string `json:"household_id"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
}

type InviteListItem struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Status    Status    `json:"status"`
	InvitedBy string    `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidInvitation = errors.New("invalid_invitation")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidUser       = errors.New("invalid_user")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("invitation_not_found")

	// ErrNotActive covers every terminal or expired state: accepting twice,
	// accepting after expiry, revoking after acceptance.
	ErrNotActive = errors.New("invitation_not_active")
)
