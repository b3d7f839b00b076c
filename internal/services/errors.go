package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// isUniqueConstraintError reports whether err is a duplicate-key violation
// from either backing driver.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
