package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/internal/config"
	"github.com/hearthhq/hearth/internal/household/domain"
	obsmetrics "github.com/hearthhq/hearth/internal/observability/metrics"
	"github.com/hearthhq/hearth/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	genID      *snowflake.Node
	governance *config.GovernanceConfigHolder
	metrics    *obsmetrics.Metrics
}

func NewService(conn *gorm.DB, log *zap.Logger, repo domain.Repository, genID *snowflake.Node, governance *config.GovernanceConfigHolder, metrics *obsmetrics.Metrics) domain.Service {
	return &service{
		db:         conn,
		log:        log,
		repo:       repo,
		genID:      genID,
		governance: governance,
		metrics:    metrics,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateHouseholdRequest) (*domain.HouseholdResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	now := time.Now().UTC()
	household := domain.Household{
		ID:        s.genID.Generate(),
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: now,
	}

	// The creator is seeded as the household's first admin in the same
	// transaction, so a household is never observable without an admin.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateHousehold(ctx, household); err != nil {
			return err
		}

		member, err := domain.NewMembership(s.genID.Generate(), household.ID, userID, domain.RoleAdmin)
		if err != nil {
			return err
		}
		return repo.SaveMembership(ctx, member)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMembershipChange(ctx, "seed_admin")
	s.log.Info("household created",
		zap.String("household_id", household.ID.String()),
		zap.String("user_id", userID.String()),
	)

	return &domain.HouseholdResponse{
		ID:        household.ID.String(),
		Name:      household.Name,
		CreatedAt: household.CreatedAt,
	}, nil
}

func (s *service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.HouseholdListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListHouseholdsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.HouseholdListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.HouseholdListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}
	return resp, nil
}

func (s *service) AddMember(ctx context.Context, householdID, actingUserID, targetUserID snowflake.ID, role string) (*domain.MemberResponse, error) {
	if householdID == 0 {
		return nil, domain.ErrInvalidHousehold
	}
	if actingUserID == 0 || targetUserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if role == "" {
		role = s.governance.Get().DefaultRole
	}
	if !domain.ValidRole(role) {
		return nil, domain.ErrInvalidRole
	}

	if err := s.requireMembership(ctx, householdID, actingUserID); err != nil {
		return nil, err
	}

	// Idempotent: an existing membership wins over the requested role.
	existing, err := s.repo.FindMembership(ctx, householdID, targetUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return memberResponse(*existing), nil
	}

	member, err := domain.NewMembership(s.genID.Generate(), householdID, targetUserID, role)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveMembership(ctx, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a race with a concurrent add; re-read and return the winner.
			existing, findErr := s.repo.FindMembership(ctx, householdID, targetUserID)
			if findErr == nil && existing != nil {
				return memberResponse(*existing), nil
			}
		}
		return nil, err
	}

	s.metrics.RecordMembershipChange(ctx, "add")
	s.log.Info("member added",
		zap.String("household_id", householdID.String()),
		zap.String("user_id", targetUserID.String()),
		zap.String("role", member.Role),
	)

	return memberResponse(member), nil
}

func (s *service) RemoveMember(ctx context.Context, householdID, actingUserID, targetUserID snowflake.ID) (bool, error) {
	if householdID == 0 {
		return false, domain.ErrInvalidHousehold
	}
	if actingUserID == 0 || targetUserID == 0 {
		return false, domain.ErrInvalidUser
	}

	var removed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		members, err := repo.FindMembershipsByHouseholdID(ctx, householdID)
		if err != nil {
			return err
		}

		var acting, target *domain.Membership
		admins := 0
		for i := range members {
			if members[i].IsAdmin() {
				admins++
			}
			if members[i].UserID == actingUserID {
				acting = &members[i]
			}
			if members[i].UserID == targetUserID {
				target = &members[i]
			}
		}
		if acting == nil {
			return domain.ErrForbidden
		}
		if target == nil {
			removed = false
			return nil
		}

		// A household with members left behind must keep at least one admin.
		if target.IsAdmin() && len(members) > 1 && admins == 1 {
			return domain.ErrLastAdmin
		}

		removed, err = repo.DeleteMembership(ctx, householdID, targetUserID)
		return err
	})
	if err != nil {
		if err == domain.ErrLastAdmin {
			s.metrics.RecordGovernanceRejected(ctx, "last_admin")
		}
		return false, err
	}

	if removed {
		s.metrics.RecordMembershipChange(ctx, "remove")
		s.log.Info("member removed",
			zap.String("household_id", householdID.String()),
			zap.String("user_id", targetUserID.String()),
		)
	}
	return removed, nil
}

func (s *service) ListMembers(ctx context.Context, householdID, actingUserID snowflake.ID) ([]domain.MemberResponse, error) {
	if householdID == 0 {
		return nil, domain.ErrInvalidHousehold
	}
	if err := s.requireMembership(ctx, householdID, actingUserID); err != nil {
		return nil, err
	}

	items, err := s.repo.ListMembers(ctx, householdID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.MemberResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.MemberResponse{
			UserID:      item.UserID.String(),
			Role:        item.Role,
			DisplayName: item.DisplayName,
			JoinedAt:    item.CreatedAt,
		})
	}
	return resp, nil
}

func (s *service) requireMembership(ctx context.Context, householdID, userID snowflake.ID) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	member, err := s.repo.FindMembership(ctx, householdID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.ErrForbidden
	}
	return nil
}

func memberResponse(member domain.Membership) *domain.MemberResponse {
	return &domain.MemberResponse{
		UserID:   member.UserID.String(),
		Role:     member.Role,
		JoinedAt: member.CreatedAt,
	}
}
