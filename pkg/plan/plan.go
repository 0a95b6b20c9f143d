// Package plan derives the DDL needed to move a MySQL database and all of
// its TEXT and VARCHAR columns to a new character set, collation and row
// format. It works purely on metadata snapshots and performs no I/O.
package plan

import (
	"fmt"
	"strings"
)

const (
	DefaultCharset   = "utf8mb4"
	DefaultCollation = "utf8mb4_unicode_ci"
	DefaultRowFormat = "DYNAMIC"

	// NoChangesMarker is rendered in place of an alter-spec for tables that
	// have no TEXT or VARCHAR columns.
	NoChangesMarker = "no conversions necessary"
)

// ColumnSpec describes one column as reported by the schema catalog.
type ColumnSpec struct {
	Name     string
	Type     string // declared type, e.g. "varchar(255)"
	Nullable bool
	// Default is nil when the column has no default. A pointer to "" is an
	// empty-string default.
	Default *string
	// DefaultExpr marks Default as an SQL expression, e.g. uuid(), rather
	// than a literal.
	DefaultExpr bool
	// Charset and Collation are the column's current settings. They are
	// informational and never consulted by GeneratePlan.
	Charset   string
	Collation string
}

// TableSpec is a table and its columns in catalog order.
type TableSpec struct {
	Name      string
	Columns   []ColumnSpec
	RowFormat string // current row format, informational
}

// DatabaseSpec is a metadata snapshot plus the conversion target.
type DatabaseSpec struct {
	Name      string
	Charset   string
	Collation string
	// RowFormat is applied to every converted table. Empty leaves the
	// row format alone.
	RowFormat string
	Tables    []TableSpec
}

// ModifyClause is a single MODIFY column clause.
type ModifyClause struct {
	Column      string
	Type        string
	Charset     string
	Collation   string
	Default     *string
	DefaultExpr bool
	Nullable    bool
}

func (c ModifyClause) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "MODIFY %s %s CHARACTER SET %s COLLATE %s", QuoteIdentifier(c.Column), c.Type, c.Charset, c.Collation)
	switch {
	case c.Default != nil && c.DefaultExpr:
		fmt.Fprintf(&sb, " DEFAULT (%s)", *c.Default)
	case c.Default != nil:
		fmt.Fprintf(&sb, " DEFAULT %s", QuoteDefault(*c.Default))
	}
	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	return sb.String()
}

// AlterAction is the conversion for one table. An action without clauses is
// the "no conversions necessary" marker.
type AlterAction struct {
	Table     string
	Clauses   []ModifyClause
	RowFormat string
}

// NoChanges returns true if the table has nothing to convert.
func (a AlterAction) NoChanges() bool {
	return len(a.Clauses) == 0
}

// AlterSpec renders the payload for ALTER TABLE or the --alter option of an
// online schema change tool. It is empty when NoChanges is true.
func (a AlterAction) AlterSpec() string {
	if a.NoChanges() {
		return ""
	}
	parts := make([]string, 0, len(a.Clauses)+1)
	for _, c := range a.Clauses {
		parts = append(parts, c.String())
	}
	if a.RowFormat != "" {
		parts = append(parts, "ROW_FORMAT="+a.RowFormat)
	}
	return strings.Join(parts, ", ")
}

// Statement renders a complete ALTER TABLE statement, or a comment carrying
// the no-op marker.
func (a AlterAction) Statement() string {
	if a.NoChanges() {
		return fmt.Sprintf("-- %s: %s", a.Table, NoChangesMarker)
	}
	return fmt.Sprintf("ALTER TABLE %s %s;", QuoteIdentifier(a.Table), a.AlterSpec())
}

// ConversionPlan is the full, ordered result of GeneratePlan.
type ConversionPlan struct {
	Database  string
	Charset   string
	Collation string
	Actions   []AlterAction
}

// DatabaseStatement changes the database defaults, which govern the
// charset of tables and columns created later.
func (p *ConversionPlan) DatabaseStatement() string {
	return fmt.Sprintf("ALTER DATABASE %s CHARACTER SET = %s COLLATE = %s;", QuoteIdentifier(p.Database), p.Charset, p.Collation)
}

// String renders the plan as plain SQL.
func (p *ConversionPlan) String() string {
	lines := make([]string, 0, len(p.Actions)+1)
	lines = append(lines, p.DatabaseStatement())
	for _, a := range p.Actions {
		lines = append(lines, a.Statement())
	}
	return strings.Join(lines, "\n") + "\n"
}

// Pending returns the actions that have clauses.
func (p *ConversionPlan) Pending() []AlterAction {
	var actions []AlterAction
	for _, a := range p.Actions {
		if !a.NoChanges() {
			actions = append(actions, a)
		}
	}
	return actions
}

// GeneratePlan converts a metadata snapshot into a conversion plan.
// Tables and columns keep their input order. Any malformed type or
// duplicate column aborts generation and no plan is returned.
// GeneratePlan does not look at the current charset of a column, so running
// it against an already converted database yields the same clauses again;
// re-applying them is a no-op in MySQL.
func GeneratePlan(db DatabaseSpec) (*ConversionPlan, error) {
	if db.Charset == "" || db.Collation == "" {
		return nil, ErrMissingTarget
	}
	p := &ConversionPlan{
		Database:  db.Name,
		Charset:   db.Charset,
		Collation: db.Collation,
		Actions:   make([]AlterAction, 0, len(db.Tables)),
	}
	rowFormat := strings.ToUpper(db.RowFormat)
	for _, t := range db.Tables {
		action := AlterAction{Table: t.Name}
		seen := make(map[string]struct{}, len(t.Columns))
		for _, col := range t.Columns {
			// MySQL column names are case-insensitive.
			key := strings.ToLower(col.Name)
			if _, ok := seen[key]; ok {
				return nil, &ColumnError{Table: t.Name, Column: col.Name, Type: col.Type, Err: ErrDuplicateColumnName}
			}
			seen[key] = struct{}{}
			desc, err := ParseType(col.Type)
			if err != nil {
				return nil, &ColumnError{Table: t.Name, Column: col.Name, Type: col.Type, Err: err}
			}
			if !desc.IsString() {
				continue
			}
			action.Clauses = append(action.Clauses, ModifyClause{
				Column:      col.Name,
				Type:        desc.Raw,
				Charset:     db.Charset,
				Collation:   db.Collation,
				Default:     col.Default,
				DefaultExpr: col.DefaultExpr,
				Nullable:    col.Nullable,
			})
		}
		if !action.NoChanges() {
			action.RowFormat = rowFormat
		}
		p.Actions = append(p.Actions, action)
	}
	return p, nil
}

// QuoteIdentifier wraps a name in backticks, doubling embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var defaultEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// QuoteDefault renders a default value as a double-quoted literal that
// MySQL reads back as exactly the same string.
func QuoteDefault(v string) string {
	return `"` + defaultEscaper.Replace(v) + `"`
}
