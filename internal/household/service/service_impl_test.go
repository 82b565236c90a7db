package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/hearthhq/hearth/internal/config"
	"github.com/hearthhq/hearth/internal/household/domain"
	"github.com/hearthhq/hearth/internal/household/repository"
	userdomain "github.com/hearthhq/hearth/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	return setupServiceWithPolicy(t, config.DefaultGovernanceConfig())
}

func setupServiceWithPolicy(t *testing.T, policy config.GovernanceConfig) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&userdomain.User{}, &domain.Household{}, &domain.Membership{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	governance := config.NewStaticGovernanceConfigHolder(policy)
	svc := NewService(db, zap.NewNop(), repository.NewRepository(db), node, governance, nil)
	return svc, db, node
}

func createUser(t *testing.T, db *gorm.DB, node *snowflake.Node, email string) snowflake.ID {
	t.Helper()

	now := time.Now().UTC()
	user := userdomain.User{
		ID:          node.Generate(),
		ExternalID:  email,
		Email:       email,
		DisplayName: email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user.ID
}

func createHousehold(t *testing.T, svc domain.Service, creator snowflake.ID) snowflake.ID {
	t.Helper()

	resp, err := svc.Create(context.Background(), creator, domain.CreateHouseholdRequest{Name: "Hill House"})
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	id, err := snowflake.ParseString(resp.ID)
	if err != nil {
		t.Fatalf("parse household id: %v", err)
	}
	return id
}

func TestCreateSeedsCreatorAsAdmin(t *testing.T) {
	svc, db, node := setupService(t)
	ctx := context.Background()

	alice := createUser(t, db, node, "alice@example.com")
	householdID := createHousehold(t, svc, alice)

	members, err := svc.ListMembers(ctx, householdID, alice)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if members[0].Role != domain.RoleAdmin {
		t.Fatalf("expected creator role %s, got %s", domain.RoleAdmin, members[0].Role)
	}
}

func TestAddMemberDefaultsToMemberRole(t *testing.T) {
	svc, db, node := setupService(t)
	ctx := context.Background()

	alice := createUser(t, db, node, "alice@example.com")
	bob := createUser(t, db, node, "bob@example.com")
	householdID := createHousehold(t, svc, alice)

	member, err := svc.AddMember(ctx, householdID, alice, bob, "")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if member.Role != domain.RoleMember {
		t.Fatalf("expected default role %s, got %s", domain.RoleMember, member.Role)
	}
}

func TestAddMemberIdempotentExistingWins(t *testing.T) {
	svc, db, node := setupService(t)
	ctx := context.Background()

	alice := createUser(t, db, node, "alice@example.com")
	bob := createUser(t, db, node, "bob@example.com")
	householdID := createHousehold(t, svc, alice)

	if _, err := svc.AddMember(ctx, householdID, alice, bob, domain.RoleMember); err != nil {
		t.Fatalf("first add: %v", err)
	}
	again, err := svc.AddMember(ctx, householdID, alice, bob, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if again.Role != domain.RoleMember {
		t.Fatalf("expected existing role to win, got %s", again.Role)
	}

	var count int64
	if err := db.Model(&domain.Membership{}).
		Where("household_id = ? AND user_id = ?", householdID, bob).
		Count(&count).Error; err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single membership row, got %d", count)
	}
}

func TestAddMemberRejectsInvalidRole(t *testing.T) {
	svc, db, node := setupService(t)

	alice := createUser(t, db, node, "alice@example.com")
	bob := createUser(t, db, node, "bob@example.com")
	householdID := createHousehold(t, svc, alice)

	_, err := svc.AddMember(context.Background(), householdID, alice, bob, "OWNER")
	if !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestMembershipRequiredForHouseholdOperations(t *testing.T) {
	svc, db, node := setupService(t)
	ctx := context.Background()

	alice := createUser(t, db, node, "alice@example.com")
	mallory := createUser(t, db, node, "mallory@example.com")
	householdID := createHousehold(t, svc, alice)

	if _, err := svc.AddMember(ctx, householdID, mallory, mallory, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("add: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ListMembers(ctx, householdID, mallory); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("list: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.RemoveMember(ctx, householdID, mallory, alice); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("remove: expected ErrForbidden, got %v", err)
	}
}

func TestRemoveMemberLastAdminRejected(t *testing.T) {
	svc, db, node := setupService(t)
	ctx := context.Background()

	alice := createUser(t, db, node, "alice@example.com")
	bob := createUser(t, db, node, "bob@example.com")
	householdID := createHousehold(t, svc, alice)

	if _, err := svc.AddMember(ctx, householdID, alice, bob, ""); err != nil {
		t.Fatalf("add member: %v", err)
	}

	// The sole admin cannot be removed while another member remains, not
	// even by themselves.
	if _, err := svc.RemoveMember(ctx, householdID, alice, alice); !errors.Is(err, domain.ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
	if _, err := svc.RemoveMember(ctx, householdID, bob, alice); !errors.Is(err, domain.ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
}

func TestRemoveSoleMemberAllowed(t *testing.T) {
	svc, db, node := setupService(t)
	ctx := context.Background()

	alice := createUser(t, db, node, "alice@example.com")
	householdID := createHousehold(t, svc, alice)

	removed, err := svc.RemoveMember(ctx, householdID, alice, alice)
	if err != nil {
		t.Fatalf("remove sole member: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to succeed")
	}
}

func TestRemoveMemberAbsentReturnsFalse(t *testing.T) {
	svc, db, node := setupService(t)

	alice := createUser(t, db, node, "alice@example.com")
	bob := createUser(t, db, node, "bob@example.com")
	householdID := createHousehold(t, svc, alice)

	removed, err := svc.RemoveMember(context.Background(), householdID, alice, bob)
	if err != nil {
		t.Fatalf("remove absent member: %v", err)
	}
	if removed {
		t.Fatalf("expected false for absent membership")
	}
}

func TestRemoveSecondAdminAllowed(t *testing.T) {
	svc, db, node := setupService(t)
	ctx := context.Background()

	alice := createUser(t, db, node, "alice@example.com")
	bob := createUser(t, db, node, "bob@example.com")
	householdID := createHousehold(t, svc, alice)

	if _, err := svc.AddMember(ctx, householdID, alice, bob, domain.RoleAdmin); err != nil {
		t.Fatalf("add second admin: %v", err)
	}

	removed, err := svc.RemoveMember(ctx, householdID, bob, alice)
	if err != nil {
		t.Fatalf("remove first admin: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to succeed with a second admin present")
	}
}

// TestLastAdminInvariantRandomized drives a random operation sequence and
// checks after every step that no household with more than one member is
// left without an admin.
func TestLastAdminInvariantRandomized(t *testing.T) {
	svc, db, node := setupService(t)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))

	users := make([]snowflake.ID, 6)
	for i := range users {
		users[i] = createUser(t, db, node, string(rune('a'+i))+"@example.com")
	}
	householdID := createHousehold(t, svc, users[0])

	for step := 0; step < 200; step++ {
		actor := users[rng.Intn(len(users))]
		target := users[rng.Intn(len(users))]

		if rng.Intn(2) == 0 {
			role := domain.RoleMember
			if rng.Intn(4) == 0 {
				role = domain.RoleAdmin
			}
			_, err := svc.AddMember(ctx, householdID, actor, target, role)
			if err != nil && !errors.Is(err, domain.ErrForbidden) {
				t.Fatalf("step %d add: %v", step, err)
			}
		} else {
			_, err := svc.RemoveMember(ctx, householdID, actor, target)
			if err != nil && !errors.Is(err, domain.ErrForbidden) && !errors.Is(err, domain.ErrLastAdmin) {
				t.Fatalf("step %d remove: %v", step, err)
			}
		}

		var members []domain.Membership
		if err := db.Where("household_id = ?", householdID).Find(&members).Error; err != nil {
			t.Fatalf("step %d load members: %v", step, err)
		}
		admins := 0
		for _, m := range members {
			if m.IsAdmin() {
				admins++
			}
		}
		if len(members) > 1 && admins == 0 {
			t.Fatalf("step %d: household with %d members has no admin", step, len(members))
		}
	}
}

func TestAddMemberUsesConfiguredDefaultRole(t *testing.T) {
	policy := config.DefaultGovernanceConfig()
	policy.DefaultRole = domain.RoleAdmin
	svc, db, node := setupServiceWithPolicy(t, policy)
	ctx := context.Background()

	alice := createUser(t, db, node, "alice@example.com")
	bob := createUser(t, db, node, "bob@example.com")
	hhID := createHousehold(t, svc, alice)

	resp, err := svc.AddMember(ctx, hhID, alice, bob, "")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("expected configured role %s, got %s", domain.RoleAdmin, resp.Role)
	}
}
