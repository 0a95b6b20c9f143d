package check

import (
	"context"
	"fmt"
	"log/slog"
)

func init() {
	registerCheck("collation", collationCheck, ScopePreRun)
}

// collationCheck confirms the server knows the target character set and
// that the collation belongs to it. Otherwise every ALTER would fail after
// the tool had already created its triggers.
func collationCheck(ctx context.Context, r Resources, _ *slog.Logger) error {
	var count int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLLATIONS WHERE CHARACTER_SET_NAME = ? AND COLLATION_NAME = ?",
		r.Charset, r.Collation,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("collation %s is not valid for character set %s on this server", r.Collation, r.Charset)
	}
	return nil
}
