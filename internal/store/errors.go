package store

import (
	"errors"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrDuplicateActiveEntry is returned by CreateLogEntry when a non-omitted
// entry already exists for the same (tenant, unit, date, type) key.
var ErrDuplicateActiveEntry = errors.New("store: duplicate active log entry")

// ErrNotFound is returned when a tenant-scoped lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// mysqlDuplicateEntry is the MySQL error number for unique key violations.
const mysqlDuplicateEntry = 1062

// isDuplicateKeyErr reports whether err is a unique constraint violation.
// The pre-insert existence check and the insert are not atomic, so a
// concurrent create can still trip the index; this maps that race to
// ErrDuplicateActiveEntry. SQLite is matched textually for the test driver.
func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
