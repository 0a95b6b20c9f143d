package check

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/block/mb4convert/pkg/utils"
)

func init() {
	registerCheck("primarykey", primaryKeyCheck, ScopePreRun)
	registerCheck("triggers", triggersCheck, ScopePreRun)
}

const uniqueKeysQuery = `SELECT DISTINCT TABLE_NAME FROM INFORMATION_SCHEMA.STATISTICS
	WHERE TABLE_SCHEMA = ? AND NON_UNIQUE = 0`

// primaryKeyCheck fails for tables without a PRIMARY KEY or UNIQUE index,
// which pt-online-schema-change needs to copy in chunks and to build its
// DELETE trigger.
func primaryKeyCheck(ctx context.Context, r Resources, _ *slog.Logger) error {
	keyed, err := tableSet(ctx, r.DB, uniqueKeysQuery, r.Database)
	if err != nil {
		return err
	}
	var missing []string
	for _, t := range r.Tables {
		if _, ok := keyed[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("tables without a PRIMARY KEY or UNIQUE index cannot be converted online: %s", strings.Join(missing, ", "))
	}
	return nil
}

const triggersQuery = `SELECT DISTINCT EVENT_OBJECT_TABLE FROM INFORMATION_SCHEMA.TRIGGERS
	WHERE EVENT_OBJECT_SCHEMA = ?`

// triggersCheck fails for tables that already have triggers, since the
// tool adds its own and refuses to run otherwise.
func triggersCheck(ctx context.Context, r Resources, _ *slog.Logger) error {
	triggered, err := tableSet(ctx, r.DB, triggersQuery, r.Database)
	if err != nil {
		return err
	}
	var found []string
	for _, t := range r.Tables {
		if _, ok := triggered[t]; ok {
			found = append(found, t)
		}
	}
	if len(found) > 0 {
		return fmt.Errorf("tables with existing triggers cannot be converted online: %s", strings.Join(found, ", "))
	}
	return nil
}

func tableSet(ctx context.Context, db *sql.DB, query, schema string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer utils.CloseAndLog(rows)
	set := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		set[name] = struct{}{}
	}
	return set, rows.Err()
}
