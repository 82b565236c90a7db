package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Save(ctx context.Context, invitation *Invitation) error
	FindByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	FindByToken(ctx context.Context, token string) (*Invitation, error)
	ExistsByToken(ctx context.Context, token string) (bool, error)
	FindActive(ctx context.Context) ([]Invitation, error)
	// FindActiveByHouseholdIDAndEmail returns the invitee's ACTIVE row for
	// the household regardless of expiry. The stored status backs a partial
	// unique index, so an overdue row must be surfaced for the caller to
	// expire before a replacement can be inserted.
	FindActiveByHouseholdIDAndEmail(ctx context.Context, householdID snowflake.ID, email string) (*Invitation, error)
	ListByHouseholdID(ctx context.Context, householdID snowflake.ID, page pagination.Pagination) ([]Invitation, *pagination.PageInfo, error)

	// UpdateStatusIfActive performs the conditional write that serializes
	// concurrent accepts and revokes: the row only transitions when its
	// stored status is still ACTIVE. Reports whether a row changed.
	UpdateStatusIfActive(ctx context.Context, id snowflake.ID, status Status, now time.Time) (bool, error)
}
