package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// HouseholdListItem is a household joined with the caller's role.
type HouseholdListItem struct {
	ID        snowflake.ID
	Name      string
	Role      string
	CreatedAt time.Time
}

// MemberListItem is a membership joined with the user's display name.
type MemberListItem struct {
	UserID      snowflake.ID
	Role        string
	DisplayName string
	Email       string
	CreatedAt   time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateHousehold(ctx context.Context, household Household) error
	ListHouseholdsByUser(ctx context.Context, userID snowflake.ID) ([]HouseholdListItem, error)
	SaveMembership(ctx context.Context, member Membership) error
	FindMembership(ctx context.Context, householdID, userID snowflake.ID) (*Membership, error)
	FindMembershipsByHouseholdID(ctx context.Context, householdID snowflake.ID) ([]Membership, error)
	ListMembers(ctx context.Context, householdID snowflake.ID) ([]MemberListItem, error)
	DeleteMembership(ctx context.Context, householdID, userID snowflake.ID) (bool, error)
}
