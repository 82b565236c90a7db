package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/internal/household/domain"
	"github.com/hearthhq/hearth/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateHousehold(ctx context.Context, household domain.Household) error {
	return r.db.WithContext(ctx).Create(&household).Error
}

func (r *repository) ListHouseholdsByUser(ctx context.Context, userID snowflake.ID) ([]domain.HouseholdListItem, error) {
	var items []domain.HouseholdListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT h.id, h.name, m.role, h.created_at
		 FROM households h
		 JOIN household_members m ON m.household_id = h.id
		 WHERE m.user_id = ?
		 ORDER BY h.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) SaveMembership(ctx context.Context, member domain.Membership) error {
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *repository) FindMembership(ctx context.Context, householdID, userID snowflake.ID) (*domain.Membership, error) {
	var member domain.Membership
	err := r.db.WithContext(ctx).
		First(&member, "household_id = ? AND user_id = ?", householdID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// FindMembershipsByHouseholdID loads the household's full member set. Inside
// a transaction the rows are locked so role and count checks stay valid until
// commit; two removers targeting the same household serialize here.
func (r *repository) FindMembershipsByHouseholdID(ctx context.Context, householdID snowflake.ID) ([]domain.Membership, error) {
	query := r.db.WithContext(ctx).
		Where("household_id = ?", householdID).
		Order("created_at ASC")
	if db.SupportsRowLocks(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var members []domain.Membership
	if err := query.Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) ListMembers(ctx context.Context, householdID snowflake.ID) ([]domain.MemberListItem, error) {
	var items []domain.MemberListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.user_id, m.role, u.display_name, u.email, m.created_at
		 FROM household_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.household_id = ?
		 ORDER BY m.created_at ASC`,
		householdID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteMembership(ctx context.Context, householdID, userID snowflake.ID) (bool, error) {
	result := r.db.WithContext(ctx).
		Delete(&domain.Membership{}, "household_id = ? AND user_id = ?", householdID, userID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
