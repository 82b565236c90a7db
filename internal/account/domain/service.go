// Package domain defines the account deletion governance contract. Deleting
// a user must never strand a multi-member household without an admin.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrUserNotFound = errors.New("user_not_found")

	// ErrDeleteBlocked means the user is the sole admin of at least one
	// household that still has other members. No deletion step runs.
	ErrDeleteBlocked = errors.New("delete_account_blocked")
)

// MembershipSummary is one row of the pre-deletion governance read: the
// user's role in a household plus that household's member and admin counts.
type MembershipSummary struct {
	HouseholdID snowflake.ID
	IsAdmin     bool
	MemberCount int
	AdminCount  int
}

// Blocking reports whether deleting the summarized user would leave a
// multi-member household with zero admins.
func (s MembershipSummary) Blocking() bool {
	return s.IsAdmin && s.AdminCount <= 1 && s.MemberCount > 1
}

type Service interface {
	// LoadMemberships returns the governance summaries for every household
	// the user belongs to.
	LoadMemberships(ctx context.Context, userID snowflake.ID) ([]MembershipSummary, error)

	// DeleteAccount validates governance and then removes the user's
	// memberships, garbage-collects households left empty, and deletes the
	// user, all in one transaction. Returns ErrDeleteBlocked without
	// mutating anything when validation fails.
	DeleteAccount(ctx context.Context, userID snowflake.ID) error
}

// ValidateGovernance fails with ErrDeleteBlocked if any summary is blocking.
func ValidateGovernance(memberships []MembershipSummary) error {
	for _, m := range memberships {
		if m.Blocking() {
			return ErrDeleteBlocked
		}
	}
	return nil
}
