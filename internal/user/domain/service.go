package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	GetByExternalID(ctx context.Context, externalID string) (*UserResponse, error)
}

type CreateUserRequest struct {
	ExternalID  string
	Email       string
	DisplayName string
}

type UserResponse struct {
	ID          snowflake.ID `json:"-"`
	ExternalID  string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	CreatedAt   time.Time    `json:"created_at"`
}

var (
	ErrInvalidExternalID = errors.New("invalid_external_id")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrUserExists        = errors.New("user_exists")
	ErrUserNotFound      = errors.New("user_not_found")
)
