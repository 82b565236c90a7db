// Package domain contains persistence models for the household service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Household represents a shared group of users coordinating day-to-day life.
type Household struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Household) TableName() string { return "households" }

const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// ValidRole reports whether role is one of the closed role set.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// Membership represents a user's membership in a household.
// A (household, user) pair has at most one row, enforced by ux_household_user.
type Membership struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	HouseholdID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_household_user,priority:1" json:"household_id"`
	UserID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_household_user,priority:2" json:"user_id"`
	Role        string       `gorm:"type:text;not null" json:"role"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "household_members" }

// NewMembership validates and builds a membership row.
func NewMembership(id, householdID, userID snowflake.ID, role string) (Membership, error) {
	if householdID == 0 {
		return Membership{}, ErrInvalidHousehold
	}
	if userID == 0 {
		return Membership{}, ErrInvalidUser
	}
	if !ValidRole(role) {
		return Membership{}, ErrInvalidRole
	}
	return Membership{
		ID:          id,
		HouseholdID: householdID,
		UserID:      userID,
		Role:        role,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// IsAdmin reports whether the membership carries the ADMIN role.
func (m Membership) IsAdmin() bool { return m.Role == RoleAdmin }
