package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/internal/account/domain"
	obsmetrics "github.com/hearthhq/hearth/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func NewService(conn *gorm.DB, log *zap.Logger, repo domain.Repository, metrics *obsmetrics.Metrics) domain.Service {
	return &service{
		db:      conn,
		log:     log,
		repo:    repo,
		metrics: metrics,
	}
}

func (s *service) LoadMemberships(ctx context.Context, userID snowflake.ID) ([]domain.MembershipSummary, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	return s.repo.LoadMembershipSummaries(ctx, userID)
}

func (s *service) DeleteAccount(ctx context.Context, userID snowflake.ID) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}

	var emptied int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		memberships, err := repo.LoadMembershipSummaries(ctx, userID)
		if err != nil {
			return err
		}

		// The summary read locks the membership rows for the rest of the
		// transaction, so a concurrent removal or role change cannot slip
		// between check and act.
		if err := domain.ValidateGovernance(memberships); err != nil {
			s.metrics.RecordGovernanceRejected(ctx, "account_delete_sole_admin")
			return err
		}

		if err := repo.DeleteMembershipsByUserID(ctx, userID); err != nil {
			return err
		}

		householdIDs := make([]snowflake.ID, 0, len(memberships))
		for _, m := range memberships {
			householdIDs = append(householdIDs, m.HouseholdID)
		}
		emptied, err = repo.DeleteEmptyHouseholds(ctx, householdIDs)
		if err != nil {
			return err
		}

		deleted, err := repo.DeleteUser(ctx, userID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.RecordAccountDeletion(ctx)
	s.log.Info("account deleted",
		zap.String("user_id", userID.String()),
		zap.Int("households_removed", emptied),
	)
	return nil
}
