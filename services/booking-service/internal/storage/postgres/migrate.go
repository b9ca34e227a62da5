package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/md-rashed-zaman/staffbook/libs/db"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the idempotent schema. It runs as one multi-statement simple-protocol exec.
func Migrate(ctx context.Context, pool *db.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
