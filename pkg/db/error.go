package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFailedAt = "UNIQUE constraint failed: "
)

// IsDuplicateKeyErr reports whether err is a unique constraint violation on
// any of the supported dialects.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	// The pure-go sqlite driver only exposes the message.
	return strings.Contains(err.Error(), sqliteUniqueFailedAt) ||
		strings.Contains(err.Error(), "Error 1062")
}

// ViolatedConstraint names the unique constraint or column err reports, when
// the driver says which one it was. It returns "" otherwise.
func ViolatedConstraint(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName
	}
	msg := err.Error()
	if i := strings.Index(msg, sqliteUniqueFailedAt); i >= 0 {
		if fields := strings.Fields(msg[i+len(sqliteUniqueFailedAt):]); len(fields) > 0 {
			return strings.TrimSuffix(fields[0], ",")
		}
	}
	return ""
}
