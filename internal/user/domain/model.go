// Package domain contains core types for the user service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User represents a system user account. Authentication happens upstream;
// the account arrives here already identified by an opaque external UUID.
type User struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ExternalID  string       `gorm:"type:text;not null;uniqueIndex:ux_users_external_id" json:"external_id"`
	Email       string       `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	DisplayName string       `gorm:"type:text" json:"display_name"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
