package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/internal/clock"
	"github.com/hearthhq/hearth/internal/config"
	householddomain "github.com/hearthhq/hearth/internal/household/domain"
	"github.com/hearthhq/hearth/internal/invitation/domain"
	obsmetrics "github.com/hearthhq/hearth/internal/observability/metrics"
	"github.com/hearthhq/hearth/internal/providers/email"
	"github.com/hearthhq/hearth/pkg/db"
	"github.com/hearthhq/hearth/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       domain.Repository
	households householddomain.Repository
	genID      *snowflake.Node
	clk        clock.Clock
	governance *config.GovernanceConfigHolder
	mailer     email.Provider
	baseURL    string
	metrics    *obsmetrics.Metrics
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Repo       domain.Repository
	Households householddomain.Repository
	GenID      *snowflake.Node
	Clock      clock.Clock
	Governance *config.GovernanceConfigHolder
	Mailer     email.Provider
	Metrics    *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log,
		repo:       p.Repo,
		households: p.Households,
		genID:      p.GenID,
		clk:        p.Clock,
		governance: p.Governance,
		mailer:     p.Mailer,
		baseURL:    p.Cfg.InviteBaseURL,
		metrics:    p.Metrics,
	}
}

func (s *service) Create(ctx context.Context, householdID, actingUserID snowflake.ID, req domain.CreateInviteRequest) (*domain.InviteResponse, error) {
	if householdID == 0 {
		return nil, domain.ErrInvalidInvitation
	}
	if actingUserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	inviteeEmail := domain.NormalizeEmail(req.Email)
	if inviteeEmail == "" {
		return nil, domain.ErrInvalidEmail
	}

	if err := s.requireMembership(ctx, householdID, actingUserID); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	policy := s.governance.Get()

	// An invitee has at most one live token per household: a still-active
	// invitation is returned as-is instead of minting a second one. The
	// ux_invitations_active_invitee index enforces the same rule in the
	// schema for creates that race past this check.
	existing, err := s.repo.FindActiveByHouseholdIDAndEmail(ctx, householdID, inviteeEmail)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.IsExpired(now) {
			return inviteResponse(*existing), nil
		}
		// An overdue ACTIVE row still occupies the unique index slot;
		// persist its expiry before minting the replacement.
		if _, err := s.repo.UpdateStatusIfActive(ctx, existing.ID, domain.StatusExpired, now); err != nil {
			return nil, err
		}
		s.metrics.RecordInvitationEvent(ctx, "expired")
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = policy.InviteTTL
	}

	invitation, err := s.createWithFreshToken(ctx, householdID, actingUserID, inviteeEmail, now.Add(ttl), policy.InviteTokenBytes)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvitationEvent(ctx, "created")
	s.log.Info("invitation created",
		zap.String("household_id", householdID.String()),
		zap.String("invitation_id", invitation.ID.String()),
	)

	s.notify(ctx, *invitation)

	return inviteResponse(*invitation), nil
}

func (s *service) Accept(ctx context.Context, token string, acceptingUserID snowflake.ID) (*domain.AcceptResponse, error) {
	if acceptingUserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	invitation, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, domain.ErrNotFound
	}

	now := s.clk.Now()
	if invitation.Status == domain.StatusActive && invitation.IsExpired(now) {
		// Expiry is detected lazily at read time and persisted here.
		if _, err := s.repo.UpdateStatusIfActive(ctx, invitation.ID, domain.StatusExpired, now); err != nil {
			return nil, err
		}
		s.metrics.RecordInvitationEvent(ctx, "expired")
		return nil, domain.ErrNotActive
	}
	if !invitation.IsActive(now) {
		return nil, domain.ErrNotActive
	}

	var member householddomain.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		households := s.households.WithTx(tx)

		// Conditional write: only one concurrent accept can flip the row.
		flipped, err := repo.UpdateStatusIfActive(ctx, invitation.ID, domain.StatusAccepted, now)
		if err != nil {
			return err
		}
		if !flipped {
			return domain.ErrNotActive
		}

		member, err = householddomain.NewMembership(
			s.genID.Generate(),
			invitation.HouseholdID,
			acceptingUserID,
			s.governance.Get().DefaultRole,
		)
		if err != nil {
			return err
		}

		if err := households.SaveMembership(ctx, member); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// The accepting user was already a member; keep the accept.
				existing, findErr := households.FindMembership(ctx, invitation.HouseholdID, acceptingUserID)
				if findErr != nil {
					return findErr
				}
				if existing != nil {
					member = *existing
					return nil
				}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvitationEvent(ctx, "accepted")
	s.metrics.RecordMembershipChange(ctx, "invite_accept")
	s.log.Info("invitation accepted",
		zap.String("household_id", invitation.HouseholdID.String()),
		zap.String("invitation_id", invitation.ID.String()),
		zap.String("user_id", acceptingUserID.String()),
	)

	return &domain.AcceptResponse{
		HouseholdID: invitation.HouseholdID.String(),
		UserID:      acceptingUserID.String(),
		Role:        member.Role,
	}, nil
}

func (s *service) Revoke(ctx context.Context, householdID, actingUserID, invitationID snowflake.ID) (bool, error) {
	if householdID == 0 || invitationID == 0 {
		return false, domain.ErrInvalidInvitation
	}
	if err := s.requireMembership(ctx, householdID, actingUserID); err != nil {
		return false, err
	}

	invitation, err := s.repo.FindByID(ctx, invitationID)
	if err != nil {
		return false, err
	}
	if invitation == nil || invitation.HouseholdID != householdID {
		return false, nil
	}
	if invitation.Status != domain.StatusActive {
		return false, nil
	}

	revoked, err := s.repo.UpdateStatusIfActive(ctx, invitationID, domain.StatusRevoked, s.clk.Now())
	if err != nil {
		return false, err
	}
	if revoked {
		s.metrics.RecordInvitationEvent(ctx, "revoked")
		s.log.Info("invitation revoked",
			zap.String("household_id", householdID.String()),
			zap.String("invitation_id", invitationID.String()),
		)
	}
	return revoked, nil
}

func (s *service) ListByHousehold(ctx context.Context, householdID, actingUserID snowflake.ID, page pagination.Pagination) ([]domain.InviteListItem, *pagination.PageInfo, error) {
	if householdID == 0 {
		return nil, nil, domain.ErrInvalidInvitation
	}
	if err := s.requireMembership(ctx, householdID, actingUserID); err != nil {
		return nil, nil, err
	}

	invitations, pageInfo, err := s.repo.ListByHouseholdID(ctx, householdID, page)
	if err != nil {
		return nil, nil, err
	}

	now := s.clk.Now()
	items := make([]domain.InviteListItem, 0, len(invitations))
	for _, inv := range invitations {
		status := inv.Status
		if status == domain.StatusActive && inv.IsExpired(now) {
			status = domain.StatusExpired
		}
		items = append(items, domain.InviteListItem{
			ID:        inv.ID.String(),
			Email:     inv.Email,
			Status:    status,
			InvitedBy: inv.InvitedBy.String(),
			ExpiresAt: inv.ExpiresAt,
			CreatedAt: inv.CreatedAt,
		})
	}
	return items, pageInfo, nil
}

func (s *service) ExpireStale(ctx context.Context) (int, error) {
	active, err := s.repo.FindActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clk.Now()
	expired := 0
	for i := range active {
		if !active[i].Expire(now) {
			continue
		}
		changed, err := s.repo.UpdateStatusIfActive(ctx, active[i].ID, domain.StatusExpired, now)
		if err != nil {
			return expired, err
		}
		if changed {
			expired++
			s.metrics.RecordInvitationEvent(ctx, "expired")
		}
	}

	if expired > 0 {
		s.log.Info("stale invitations expired", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *service) requireMembership(ctx context.Context, householdID, userID snowflake.ID) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	member, err := s.households.FindMembership(ctx, householdID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.ErrForbidden
	}
	return nil
}

func (s *service) notify(ctx context.Context, invitation domain.Invitation) {
	if s.mailer == nil {
		return
	}

	link := fmt.Sprintf("%s/invitations/accept?token=%s", s.baseURL, invitation.Token)
	body := fmt.Sprintf(
		"<p>You have been invited to join a household on Hearth.</p><p><a href=%q>Accept invitation</a></p><p>The invitation expires %s.</p>",
		link,
		invitation.ExpiresAt.Format(time.RFC1123),
	)

	if err := s.mailer.Send(ctx, []string{invitation.Email}, "You're invited to a household", body); err != nil {
		// Delivery failures do not fail the create; the token can be re-read.
		s.log.Warn("failed to send invitation email",
			zap.String("invitation_id", invitation.ID.String()),
			zap.Error(err),
		)
	}
}

func inviteResponse(invitation domain.Invitation) *domain.InviteResponse {
	return &domain.InviteResponse{
		ID:        invitation.ID.String(),
		Email:     invitation.Email,
		Token:     invitation.Token,
		Status:    invitation.Status,
		ExpiresAt: invitation.ExpiresAt,
	}
}
