// Package seed bootstraps a default household and admin account so a fresh
// self-hosted install is usable immediately.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	householddomain "github.com/hearthhq/hearth/internal/household/domain"
	invitationdomain "github.com/hearthhq/hearth/internal/invitation/domain"
	userdomain "github.com/hearthhq/hearth/internal/user/domain"
	"gorm.io/gorm"
)

const (
	defaultHouseholdName = "My Household"
	defaultAdminDisplay  = "Hearth Admin"
)

// EnsureDefaultHouseholdAndAdmin creates the admin user and a household with
// that user as its sole ADMIN member, unless they already exist. The seeded
// household satisfies the same invariant as a created one: it is never
// observable without an admin.
func EnsureDefaultHouseholdAndAdmin(db *gorm.DB, node *snowflake.Node, adminEmail string) error {
	if db == nil || node == nil {
		return errors.New("seed database handle and id node are required")
	}
	adminEmail = invitationdomain.NormalizeEmail(adminEmail)
	if adminEmail == "" {
		return errors.New("seed admin email is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		admin, err := ensureAdminUserTx(ctx, tx, node, adminEmail)
		if err != nil {
			return err
		}
		return ensureHouseholdTx(ctx, tx, node, admin.ID)
	})
}

func ensureAdminUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, email string) (userdomain.User, error) {
	var user userdomain.User
	err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return userdomain.User{}, err
	}

	now := time.Now().UTC()
	user = userdomain.User{
		ID:          node.Generate(),
		ExternalID:  uuid.NewString(),
		Email:       email,
		DisplayName: defaultAdminDisplay,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return userdomain.User{}, err
	}
	return user, nil
}

func ensureHouseholdTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, adminID snowflake.ID) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&householddomain.Membership{}).
		Where("user_id = ?", adminID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	household := householddomain.Household{
		ID:        node.Generate(),
		Name:      defaultHouseholdName,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&household).Error; err != nil {
		return err
	}

	member, err := householddomain.NewMembership(node.Generate(), household.ID, adminID, householddomain.RoleAdmin)
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Create(&member).Error
}
