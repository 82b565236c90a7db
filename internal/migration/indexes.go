package migration

import "gorm.io/gorm"

// EnsureActiveInviteeIndex creates the partial unique index allowing at most
// one ACTIVE invitation per (household, email). gorm's struct tags cannot
// express a partial index, so the AutoMigrate path applies it here. MySQL has
// no partial indexes; there the service-level reuse check is the only guard.
func EnsureActiveInviteeIndex(conn *gorm.DB) error {
	if conn.Dialector.Name() == "mysql" {
		return nil
	}
	return conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_invitations_active_invitee
		 ON household_invitations (household_id, email) WHERE status = 'ACTIVE'`,
	).Error
}
