package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the services branch on.
const (
	CodeForeignKeyViolation = "23503"
	CodeUniqueViolation     = "23505"
	CodeExclusionViolation  = "23P01"
)

func HasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// IsExclusionViolation reports an EXCLUDE constraint hit, e.g. overlapping ranges.
func IsExclusionViolation(err error) bool {
	return HasCode(err, CodeExclusionViolation)
}

func IsUniqueViolation(err error) bool {
	return HasCode(err, CodeUniqueViolation)
}

func IsForeignKeyViolation(err error) bool {
	return HasCode(err, CodeForeignKeyViolation)
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
