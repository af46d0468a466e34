package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgUniqueViolation     = "23505"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

// violatesForeignKey 判斷是否違反指定名稱的外鍵約束
func violatesForeignKey(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation && pgErr.ConstraintName == constraint
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}
