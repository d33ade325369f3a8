package db

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// Migrate creates every table, index and trigger the quiz needs. It is idempotent.
func Migrate(ctx context.Context, conn DBTX) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply quiz schema: %w", err)
	}
	return nil
}
