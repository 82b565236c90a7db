package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/internal/account/domain"
	householddomain "github.com/hearthhq/hearth/internal/household/domain"
	userdomain "github.com/hearthhq/hearth/internal/user/domain"
	"github.com/hearthhq/hearth/pkg/db"
	"gorm.io/gorm"
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

func (r *repository) LoadMembershipSummaries(ctx context.Context, userID snowflake.ID) ([]domain.MembershipSummary, error) {
	// Lock every membership row in the caller's households first; the admin
	// counts below must hold until the surrounding transaction commits.
	if db.SupportsRowLocks(r.db) {
		var locked []int64
		err := r.db.WithContext(ctx).Raw(
			`SELECT id FROM household_members
			 WHERE household_id IN (SELECT household_id FROM household_members WHERE user_id = ?)
			 FOR UPDATE`,
			userID,
		).Scan(&locked).Error
		if err != nil {
			return nil, err
		}
	}

	var rows []struct {
		HouseholdID snowflake.ID
		Role        string
		MemberCount int
		AdminCount  int
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.household_id,
		        m.role,
		        (SELECT COUNT(*) FROM household_members c
		          WHERE c.household_id = m.household_id) AS member_count,
		        (SELECT COUNT(*) FROM household_members c
		          WHERE c.household_id = m.household_id AND c.role = ?) AS admin_count
		 FROM household_members m
		 WHERE m.user_id = ?
		 ORDER BY m.household_id ASC`,
		householddomain.RoleAdmin,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.MembershipSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, domain.MembershipSummary{
			HouseholdID: row.HouseholdID,
			IsAdmin:     row.Role == householddomain.RoleAdmin,
			MemberCount: row.MemberCount,
			AdminCount:  row.AdminCount,
		})
	}
	return summaries, nil
}

func (r *repository) DeleteMembershipsByUserID(ctx context.Context, userID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&householddomain.Membership{}).Error
}

func (r *repository) DeleteEmptyHouseholds(ctx context.Context, householdIDs []snowflake.ID) (int, error) {
	if len(householdIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Exec(
		`DELETE FROM households
		 WHERE id IN ?
		   AND NOT EXISTS (SELECT 1 FROM household_members m WHERE m.household_id = households.id)`,
		householdIDs,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func (r *repository) DeleteUser(ctx context.Context, userID snowflake.ID) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&userdomain.User{}, "id = ?", userID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
