package repository

import (
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// isUniqueViolation reports whether err is a unique constraint violation from
// either supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if apperrors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if apperrors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}
