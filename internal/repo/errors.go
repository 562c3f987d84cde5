package repo

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned by find/update/delete operations when no row
// matched. Callers rely on distinguishing it from other failures.
var ErrNotFound = errors.New("record not found")

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
