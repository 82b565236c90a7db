package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/hearthhq/hearth/internal/user/domain"
	"github.com/hearthhq/hearth/internal/user/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) domain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	return NewService(zap.NewNop(), repository.NewRepository(db), node)
}

func TestCreateMintsExternalID(t *testing.T) {
	svc := setupService(t)

	created, err := svc.Create(context.Background(), domain.CreateUserRequest{Email: "Alice@Example.com "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := uuid.Parse(created.ExternalID); err != nil {
		t.Fatalf("expected a minted uuid, got %q", created.ExternalID)
	}
	if created.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, domain.CreateUserRequest{ExternalID: "nope", Email: "a@b.c"}); !errors.Is(err, domain.ErrInvalidExternalID) {
		t.Fatalf("expected ErrInvalidExternalID, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateUserRequest{Email: "not-an-email"}); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, domain.CreateUserRequest{Email: "alice@example.com"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateUserRequest{Email: "ALICE@example.com"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestGetByExternalID(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateUserRequest{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := svc.GetByExternalID(ctx, created.ExternalID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found.Email != created.Email {
		t.Fatalf("expected %q, got %q", created.Email, found.Email)
	}

	if _, err := svc.GetByExternalID(ctx, uuid.NewString()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.GetByExternalID(ctx, " "); !errors.Is(err, domain.ErrInvalidExternalID) {
		t.Fatalf("expected ErrInvalidExternalID, got %v", err)
	}
}
