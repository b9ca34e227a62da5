package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestHasCodeUnwraps(t *testing.T) {
	err := fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: CodeExclusionViolation})
	if !IsExclusionViolation(err) {
		t.Fatal("expected wrapped exclusion violation to be detected")
	}
	if IsUniqueViolation(err) {
		t.Fatal("exclusion violation must not look like a unique violation")
	}
	if IsExclusionViolation(errors.New("boom")) {
		t.Fatal("plain error must not match")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(&pgconn.PgError{Code: CodeForeignKeyViolation}) {
		t.Fatal("expected foreign key violation to be detected")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Fatal("expected wrapped ErrNoRows to match")
	}
}
