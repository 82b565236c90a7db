package db

import "gorm.io/gorm"

// SupportsRowLocks reports whether the dialect accepts SELECT ... FOR UPDATE.
// sqlite rejects the syntax; its single writer serializes transactions anyway.
func SupportsRowLocks(conn *gorm.DB) bool {
	return conn.Dialector.Name() != "sqlite"
}
