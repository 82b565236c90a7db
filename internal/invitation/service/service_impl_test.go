package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/hearthhq/hearth/internal/clock"
	"github.com/hearthhq/hearth/internal/config"
	householddomain "github.com/hearthhq/hearth/internal/household/domain"
	householdrepository "github.com/hearthhq/hearth/internal/household/repository"
	"github.com/hearthhq/hearth/internal/invitation/domain"
	"github.com/hearthhq/hearth/internal/invitation/repository"
	"github.com/hearthhq/hearth/internal/migration"
	"github.com/hearthhq/hearth/internal/providers/email"
	pkgdb "github.com/hearthhq/hearth/pkg/db"
	"github.com/hearthhq/hearth/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testFixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clk   *clock.FakeClock
	admin snowflake.ID
	hhID  snowflake.ID
}

func setupFixture(t *testing.T) *testFixture {
	return setupFixtureWithPolicy(t, config.DefaultGovernanceConfig())
}

func setupFixtureWithPolicy(t *testing.T, policy config.GovernanceConfig) *testFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&householddomain.Household{}, &householddomain.Membership{}, &domain.Invitation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := migration.EnsureActiveInviteeIndex(db); err != nil {
		t.Fatalf("invitee index: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	householdRepo := householdrepository.NewRepository(db)

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Cfg:        config.Config{InviteBaseURL: "http://hearth.test"},
		Repo:       repository.NewRepository(db),
		Households: householdRepo,
		GenID:      node,
		Clock:      clk,
		Governance: config.NewStaticGovernanceConfigHolder(policy),
		Mailer:     &email.NoOpProvider{},
	})

	admin := node.Generate()
	household := householddomain.Household{ID: node.Generate(), Name: "Hill House", CreatedAt: clk.Now()}
	if err := db.Create(&household).Error; err != nil {
		t.Fatalf("create household: %v", err)
	}
	member, err := householddomain.NewMembership(node.Generate(), household.ID, admin, householddomain.RoleAdmin)
	if err != nil {
		t.Fatalf("build membership: %v", err)
	}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}

	return &testFixture{
		svc:   svc,
		db:    db,
		node:  node,
		clk:   clk,
		admin: admin,
		hhID:  household.ID,
	}
}

func TestCreateInvitation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "Bob@Example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if invite.Token == "" {
		t.Fatalf("expected a token")
	}
	if invite.Email != "bob@example.com" {
		t.Fatalf("expected normalized email, got %s", invite.Email)
	}
	if invite.Status != domain.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", invite.Status)
	}
	wantExpiry := f.clk.Now().Add(config.DefaultGovernanceConfig().InviteTTL)
	if !invite.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %v, got %v", wantExpiry, invite.ExpiresAt)
	}
}

func TestCreateRequiresMembership(t *testing.T) {
	f := setupFixture(t)

	stranger := f.node.Generate()
	_, err := f.svc.Create(context.Background(), f.hhID, stranger, domain.CreateInviteRequest{Email: "bob@example.com"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateReusesActiveInvitation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "BOB@example.com"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID || first.Token != second.Token {
		t.Fatalf("expected the active invitation to be reused")
	}

	var count int64
	if err := f.db.Model(&domain.Invitation{}).Count(&count).Error; err != nil {
		t.Fatalf("count invitations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 invitation row, got %d", count)
	}
}

func TestCreateMintsFreshTokenAfterRevoke(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	firstID, err := snowflake.ParseString(first.ID)
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	if _, err := f.svc.Revoke(ctx, f.hhID, f.admin, firstID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	second, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.ID == first.ID || second.Token == first.Token {
		t.Fatalf("expected a fresh invitation after revoke")
	}
}

func TestAcceptCreatesMembership(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bob := f.node.Generate()
	resp, err := f.svc.Accept(ctx, invite.Token, bob)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resp.Role != householddomain.RoleMember {
		t.Fatalf("expected role %s, got %s", householddomain.RoleMember, resp.Role)
	}

	var member householddomain.Membership
	if err := f.db.First(&member, "household_id = ? AND user_id = ?", f.hhID, bob).Error; err != nil {
		t.Fatalf("load membership: %v", err)
	}

	var stored domain.Invitation
	if err := f.db.First(&stored, "token = ?", invite.Token).Error; err != nil {
		t.Fatalf("load invitation: %v", err)
	}
	if stored.Status != domain.StatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", stored.Status)
	}
}

func TestAcceptIsSingleUse(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Accept(ctx, invite.Token, f.node.Generate()); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := f.svc.Accept(ctx, invite.Token, f.node.Generate()); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("second accept: expected ErrNotActive, got %v", err)
	}
}

func TestAcceptTolerantOfExistingMembership(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "admin@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The admin is already a member; accepting keeps the existing row.
	resp, err := f.svc.Accept(ctx, invite.Token, f.admin)
	if err != nil {
		t.Fatalf("accept as member: %v", err)
	}
	if resp.Role != householddomain.RoleAdmin {
		t.Fatalf("expected existing role to survive, got %s", resp.Role)
	}

	var count int64
	if err := f.db.Model(&householddomain.Membership{}).
		Where("household_id = ? AND user_id = ?", f.hhID, f.admin).
		Count(&count).Error; err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 membership row, got %d", count)
	}
}

func TestAcceptUnknownToken(t *testing.T) {
	f := setupFixture(t)

	_, err := f.svc.Accept(context.Background(), "no-such-token", f.node.Generate())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAcceptExpiredPersistsExpiry(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com", TTL: time.Hour})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.clk.Advance(2 * time.Hour)

	if _, err := f.svc.Accept(ctx, invite.Token, f.node.Generate()); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}

	var stored domain.Invitation
	if err := f.db.First(&stored, "token = ?", invite.Token).Error; err != nil {
		t.Fatalf("load invitation: %v", err)
	}
	if stored.Status != domain.StatusExpired {
		t.Fatalf("expected EXPIRED to be persisted, got %s", stored.Status)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inviteID, err := snowflake.ParseString(invite.ID)
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}

	revoked, err := f.svc.Revoke(ctx, f.hhID, f.admin, inviteID)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !revoked {
		t.Fatalf("expected first revoke to report true")
	}

	revoked, err = f.svc.Revoke(ctx, f.hhID, f.admin, inviteID)
	if err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if revoked {
		t.Fatalf("expected second revoke to report false")
	}

	// Unknown id and wrong household both report false rather than erroring.
	revoked, err = f.svc.Revoke(ctx, f.hhID, f.admin, f.node.Generate())
	if err != nil || revoked {
		t.Fatalf("expected false for unknown invitation, got %v %v", revoked, err)
	}
}

func TestRevokedTokenCannotBeAccepted(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inviteID, err := snowflake.ParseString(invite.ID)
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	if _, err := f.svc.Revoke(ctx, f.hhID, f.admin, inviteID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := f.svc.Accept(ctx, invite.Token, f.node.Generate()); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestExpireStaleSweep(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "soon@example.com", TTL: time.Hour}); err != nil {
		t.Fatalf("create short: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "later@example.com", TTL: 48 * time.Hour}); err != nil {
		t.Fatalf("create long: %v", err)
	}

	f.clk.Advance(2 * time.Hour)

	expired, err := f.svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("expire stale: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}

	// A second sweep finds nothing to do.
	expired, err = f.svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expected 0 expired on second sweep, got %d", expired)
	}
}

func TestListByHouseholdPaginates(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	emails := []string{"a@example.com", "b@example.com", "c@example.com"}
	for _, addr := range emails {
		if _, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: addr}); err != nil {
			t.Fatalf("create %s: %v", addr, err)
		}
		f.clk.Advance(time.Second)
	}

	seen := map[string]bool{}
	page := pagination.Pagination{PageSize: 2}
	for {
		items, info, err := f.svc.ListByHousehold(ctx, f.hhID, f.admin, page)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, item := range items {
			if seen[item.Email] {
				t.Fatalf("duplicate item %s across pages", item.Email)
			}
			seen[item.Email] = true
		}
		if info == nil || !info.HasMore {
			break
		}
		page.PageToken = info.NextPageToken
	}
	if len(seen) != len(emails) {
		t.Fatalf("expected %d invitations, got %d", len(emails), len(seen))
	}
}

func TestActiveInviteeUniqueIndex(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A second ACTIVE row for the same invitee must be rejected by the
	// schema, not just by the service's read-then-insert check.
	rival, err := domain.NewActive(f.node.Generate(), f.hhID, "bob@example.com", "rival-token", f.admin, f.clk.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("build rival: %v", err)
	}
	repo := repository.NewRepository(f.db)
	if err := repo.Save(ctx, &rival); !pkgdb.IsDuplicateKeyErr(err) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}

	// Terminal rows release the slot.
	rival.Status = domain.StatusRevoked
	if err := repo.Save(ctx, &rival); err != nil {
		t.Fatalf("save revoked rival: %v", err)
	}
}

func TestCreateReturnsWinnerWhenInsertLosesRace(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Plant a competing ACTIVE invitation right before the service's own
	// insert runs, after its duplicate check has already passed.
	const rivalToken = "rival-token"
	planted := false
	err := f.db.Callback().Create().Before("gorm:create").Register("plant_rival_invite", func(d *gorm.DB) {
		if planted || d.Statement.Table != "household_invitations" {
			return
		}
		planted = true
		now := f.clk.Now().UTC()
		if err := f.db.Session(&gorm.Session{NewDB: true}).Exec(
			`INSERT INTO household_invitations
			 (id, household_id, email, token, status, invited_by, expires_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(f.node.Generate()), int64(f.hhID), "bob@example.com", rivalToken,
			domain.StatusActive, int64(f.admin), now.Add(time.Hour), now, now,
		).Error; err != nil {
			t.Errorf("plant rival: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	invite, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if invite.Token != rivalToken {
		t.Fatalf("expected the racing winner to be reused, got token %s", invite.Token)
	}

	var count int64
	if err := f.db.Model(&domain.Invitation{}).
		Where("household_id = ? AND status = ?", f.hhID, domain.StatusActive).
		Count(&count).Error; err != nil {
		t.Fatalf("count active: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ACTIVE invitation, got %d", count)
	}
}

func TestCreateReplacesStaleActiveRow(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com", TTL: time.Hour})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.clk.Advance(2 * time.Hour)

	second, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.ID == first.ID || second.Token == first.Token {
		t.Fatalf("expected a fresh invitation after expiry")
	}

	var stored domain.Invitation
	if err := f.db.First(&stored, "token = ?", first.Token).Error; err != nil {
		t.Fatalf("load first invitation: %v", err)
	}
	if stored.Status != domain.StatusExpired {
		t.Fatalf("expected stale row persisted as EXPIRED, got %s", stored.Status)
	}
}

func TestAcceptGrantsConfiguredDefaultRole(t *testing.T) {
	policy := config.DefaultGovernanceConfig()
	policy.DefaultRole = householddomain.RoleAdmin
	f := setupFixtureWithPolicy(t, policy)
	ctx := context.Background()

	invite, err := f.svc.Create(ctx, f.hhID, f.admin, domain.CreateInviteRequest{Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	resp, err := f.svc.Accept(ctx, invite.Token, f.node.Generate())
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resp.Role != householddomain.RoleAdmin {
		t.Fatalf("expected configured role %s, got %s", householddomain.RoleAdmin, resp.Role)
	}
}
