// Package schema builds plan.DatabaseSpec snapshots from a live MySQL
// server or from a directory of CREATE TABLE files.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/block/mb4convert/pkg/plan"
	"github.com/block/mb4convert/pkg/statement"
	"github.com/block/mb4convert/pkg/utils"
)

// Target is the character set, collation and row format to convert to.
type Target struct {
	Database  string
	Charset   string
	Collation string
	RowFormat string
}

// DefaultTarget returns a utf8mb4 target with the DYNAMIC row format.
func DefaultTarget(database string) Target {
	return Target{
		Database:  database,
		Charset:   plan.DefaultCharset,
		Collation: plan.DefaultCollation,
		RowFormat: plan.DefaultRowFormat,
	}
}

func (t Target) spec(name string) plan.DatabaseSpec {
	return plan.DatabaseSpec{
		Name:      name,
		Charset:   t.Charset,
		Collation: t.Collation,
		RowFormat: t.RowFormat,
	}
}

const (
	snapshotStmt = "START TRANSACTION WITH CONSISTENT SNAPSHOT, READ ONLY"
	tablesQuery  = `SELECT TABLE_NAME, IFNULL(ROW_FORMAT, '')
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`
	columnsQuery = `SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT,
		IFNULL(CHARACTER_SET_NAME, ''), IFNULL(COLLATION_NAME, ''), EXTRA
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`
)

// LoadFromDB reads table and column metadata for target.Database, or for
// the connection's current database when it is empty. All reads happen in a
// single consistent-snapshot transaction so the plan is never built from a
// table that changed halfway through.
func LoadFromDB(ctx context.Context, db *sql.DB, target Target) (plan.DatabaseSpec, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return plan.DatabaseSpec{}, fmt.Errorf("failed to get connection: %w", err)
	}
	defer utils.CloseAndLog(conn)

	if _, err := conn.ExecContext(ctx, snapshotStmt); err != nil {
		return plan.DatabaseSpec{}, fmt.Errorf("failed to start snapshot: %w", err)
	}
	spec, err := loadSnapshot(ctx, conn, target)
	if err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return plan.DatabaseSpec{}, err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return plan.DatabaseSpec{}, fmt.Errorf("failed to end snapshot: %w", err)
	}
	return spec, nil
}

func loadSnapshot(ctx context.Context, conn *sql.Conn, target Target) (plan.DatabaseSpec, error) {
	name := target.Database
	if name == "" {
		var current sql.NullString
		if err := conn.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&current); err != nil {
			return plan.DatabaseSpec{}, fmt.Errorf("failed to read current database: %w", err)
		}
		if !current.Valid || current.String == "" {
			return plan.DatabaseSpec{}, errors.New("no database selected")
		}
		name = current.String
	}
	spec := target.spec(name)

	rows, err := conn.QueryContext(ctx, tablesQuery, name)
	if err != nil {
		return plan.DatabaseSpec{}, fmt.Errorf("failed to list tables: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var t plan.TableSpec
		if err := rows.Scan(&t.Name, &t.RowFormat); err != nil {
			utils.CloseAndLog(rows)
			return plan.DatabaseSpec{}, fmt.Errorf("failed to scan table: %w", err)
		}
		index[t.Name] = len(spec.Tables)
		spec.Tables = append(spec.Tables, t)
	}
	if err := rows.Err(); err != nil {
		utils.CloseAndLog(rows)
		return plan.DatabaseSpec{}, fmt.Errorf("error iterating tables: %w", err)
	}
	utils.CloseAndLog(rows)

	rows, err = conn.QueryContext(ctx, columnsQuery, name)
	if err != nil {
		return plan.DatabaseSpec{}, fmt.Errorf("failed to list columns: %w", err)
	}
	defer utils.CloseAndLog(rows)
	for rows.Next() {
		var (
			tableName, isNullable, extra string
			def                          sql.NullString
			col                          plan.ColumnSpec
		)
		if err := rows.Scan(&tableName, &col.Name, &col.Type, &isNullable, &def, &col.Charset, &col.Collation, &extra); err != nil {
			return plan.DatabaseSpec{}, fmt.Errorf("failed to scan column: %w", err)
		}
		i, ok := index[tableName]
		if !ok {
			continue // views
		}
		col.Nullable = isNullable == "YES"
		if def.Valid {
			col.Default = &def.String
			// MySQL 8.0.13+ reports expression defaults unparenthesized.
			col.DefaultExpr = strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED")
		}
		spec.Tables[i].Columns = append(spec.Tables[i].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return plan.DatabaseSpec{}, fmt.Errorf("error iterating columns: %w", err)
	}
	return spec, nil
}

// LoadFromDir reads all .sql files in dir, in lexical order, and parses each
// as a single CREATE TABLE statement. Columns without an explicit charset
// report the table's, as INFORMATION_SCHEMA would.
func LoadFromDir(dir string, target Target) (plan.DatabaseSpec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return plan.DatabaseSpec{}, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	name := target.Database
	if name == "" {
		name = filepath.Base(filepath.Clean(dir))
	}
	spec := target.spec(name)

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		path := filepath.Join(dir, file)
		content, err := os.ReadFile(path)
		if err != nil {
			return plan.DatabaseSpec{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		ct, err := statement.ParseCreateTable(string(content))
		if err != nil {
			return plan.DatabaseSpec{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		spec.Tables = append(spec.Tables, tableSpec(ct))
	}
	return spec, nil
}

func tableSpec(ct *statement.CreateTable) plan.TableSpec {
	t := plan.TableSpec{Name: ct.TableName}
	var tableCharset, tableCollation string
	if opts := ct.TableOptions; opts != nil {
		if opts.Charset != nil {
			tableCharset = *opts.Charset
		}
		if opts.Collation != nil {
			tableCollation = *opts.Collation
		}
		if opts.RowFormat != nil {
			t.RowFormat = *opts.RowFormat
		}
	}
	for _, c := range ct.Columns {
		col := plan.ColumnSpec{
			Name:        c.Name,
			Type:        c.Type,
			Nullable:    c.Nullable,
			Default:     c.Default,
			DefaultExpr: c.DefaultExpr,
			Charset:     tableCharset,
			Collation:   tableCollation,
		}
		if c.Charset != nil {
			col.Charset = *c.Charset
			if !strings.EqualFold(col.Charset, tableCharset) {
				col.Collation = ""
			}
		}
		if c.Collation != nil {
			col.Collation = *c.Collation
		}
		t.Columns = append(t.Columns, col)
	}
	return t
}

// IgnoreTables removes tables whose name matches pattern. An empty pattern
// returns spec unchanged.
func IgnoreTables(spec plan.DatabaseSpec, pattern string) (plan.DatabaseSpec, error) {
	if pattern == "" {
		return spec, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return plan.DatabaseSpec{}, fmt.Errorf("invalid --ignore-tables regex %q: %w", pattern, err)
	}
	tables := make([]plan.TableSpec, 0, len(spec.Tables))
	for _, t := range spec.Tables {
		if !re.MatchString(t.Name) {
			tables = append(tables, t)
		}
	}
	spec.Tables = tables
	return spec, nil
}
