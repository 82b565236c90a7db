package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LoadMembershipSummaries(ctx context.Context, userID snowflake.ID) ([]MembershipSummary, error)
	DeleteMembershipsByUserID(ctx context.Context, userID snowflake.ID) error

	// DeleteEmptyHouseholds removes the given households if they have no
	// remaining members, returning how many were deleted.
	DeleteEmptyHouseholds(ctx context.Context, householdIDs []snowflake.ID) (int, error)

	// DeleteUser removes the user row, reporting whether it existed.
	DeleteUser(ctx context.Context, userID snowflake.ID) (bool, error)
}
