package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateHouseholdRequest) (*HouseholdResponse, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]HouseholdListResponseItem, error)
	AddMember(ctx context.Context, householdID, actingUserID, targetUserID snowflake.ID, role string) (*MemberResponse, error)
	RemoveMember(ctx context.Context, householdID, actingUserID, targetUserID snowflake.ID) (bool, error)
	ListMembers(ctx context.Context, householdID, actingUserID snowflake.ID) ([]MemberResponse, error)
}

type CreateHouseholdRequest struct {
	Name string
}

type HouseholdResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type HouseholdListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberResponse struct {
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

var (
	ErrInvalidHousehold = errors.New("invalid_household")
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("household_not_found")

	// ErrLastAdmin rejects removing the sole remaining admin of a household
	// that still has other members.
	ErrLastAdmin = errors.New("last_admin")
)
