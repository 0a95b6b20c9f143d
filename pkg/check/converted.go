package check

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/block/mb4convert/pkg/plan"
	"github.com/block/mb4convert/pkg/schema"
)

func init() {
	registerCheck("converted", convertedCheck, ScopePostRun)
}

// convertedCheck re-reads the schema and confirms no converted table still
// has a column on the old character set.
func convertedCheck(ctx context.Context, r Resources, logger *slog.Logger) error {
	spec, err := schema.LoadFromDB(ctx, r.DB, schema.Target{
		Database:  r.Database,
		Charset:   r.Charset,
		Collation: r.Collation,
	})
	if err != nil {
		return err
	}
	pending, err := plan.CheckPending(spec)
	if err != nil {
		return err
	}
	var remaining []plan.PendingColumn
	for _, col := range pending {
		if slices.Contains(r.Tables, col.Table) {
			remaining = append(remaining, col)
		}
	}
	if len(remaining) > 0 {
		for _, col := range remaining {
			logger.Error("column not converted", "column", col.String())
		}
		return fmt.Errorf("%d columns were not converted, first: %s", len(remaining), remaining[0])
	}
	logger.Info("all converted tables are on the target character set", "tables", len(r.Tables))
	return nil
}
