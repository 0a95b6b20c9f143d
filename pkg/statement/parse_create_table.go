// Package statement is a wrapper around the parser for the CREATE TABLE
// statements that mb4convert reads and rewrites.
package statement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	"github.com/pingcap/tidb/pkg/parser/mysql"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
	"github.com/pingcap/tidb/pkg/parser/types"
)

var ErrNotCreateTable = errors.New("not a CREATE TABLE statement")

// CreateTable represents a parsed CREATE TABLE statement.
type CreateTable struct {
	Raw          *ast.CreateTableStmt `json:"-"`
	TableName    string               `json:"table_name"`
	Columns      Columns              `json:"columns"`
	TableOptions *TableOptions        `json:"table_options,omitempty"`
}

// Column represents a table column definition
type Column struct {
	Raw         *ast.ColumnDef `json:"-"`
	Name        string         `json:"name"`
	Type        string         `json:"type"` // lower-case, e.g. "varchar(255)", "int unsigned"
	Nullable    bool           `json:"nullable"`
	Default     *string        `json:"default,omitempty"`
	DefaultExpr bool           `json:"default_expr,omitempty"` // Default is SQL expression text
	Charset     *string        `json:"charset,omitempty"`
	Collation   *string        `json:"collation,omitempty"`
}

type Columns []Column

// TableOptions represents table-level options
type TableOptions struct {
	Engine    *string `json:"engine,omitempty"`
	Charset   *string `json:"charset,omitempty"`
	Collation *string `json:"collation,omitempty"`
	RowFormat *string `json:"row_format,omitempty"`
}

// ParseCreateTable parses a single CREATE TABLE statement.
func ParseCreateTable(sql string) (*CreateTable, error) {
	p := parser.New()
	stmts, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse SQL: %w", err)
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("expected exactly one statement, got %d", len(stmts))
	}
	createStmt, ok := stmts[0].(*ast.CreateTableStmt)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotCreateTable, stmts[0])
	}
	ct := &CreateTable{
		Raw: createStmt,
	}
	ct.parseToStruct()
	return ct, nil
}

// parseToStruct converts the AST into a structured CreateTable
func (ct *CreateTable) parseToStruct() {
	ct.TableName = ct.Raw.Table.Name.String()
	ct.Columns = make([]Column, 0, len(ct.Raw.Cols))
	for _, col := range ct.Raw.Cols {
		ct.Columns = append(ct.Columns, parseColumn(col))
	}
	if len(ct.Raw.Options) > 0 {
		ct.TableOptions = parseTableOptions(ct.Raw.Options)
	}
}

// parseColumn converts a column definition to a Column struct
func parseColumn(col *ast.ColumnDef) Column {
	column := Column{
		Raw:      col,
		Name:     col.Name.Name.String(),
		Type:     typeString(col.Tp),
		Nullable: true,
	}
	if cs := col.Tp.GetCharset(); cs != "" {
		column.Charset = &cs
	}
	if coll := col.Tp.GetCollate(); coll != "" {
		column.Collation = &coll
	}
	for _, opt := range col.Options {
		switch opt.Tp { //nolint:exhaustive
		case ast.ColumnOptionNotNull:
			column.Nullable = false
		case ast.ColumnOptionNull:
			column.Nullable = true
		case ast.ColumnOptionPrimaryKey:
			column.Nullable = false // PRIMARY KEY implies NOT NULL
		case ast.ColumnOptionDefaultValue:
			column.Default, column.DefaultExpr = defaultValue(opt.Expr, literalDefaultsDenied(col.Tp))
		case ast.ColumnOptionCollate:
			if opt.StrValue != "" {
				coll := opt.StrValue
				column.Collation = &coll
			}
		}
	}
	return column
}

// typeString renders the column type the way INFORMATION_SCHEMA.COLUMNS
// reports COLUMN_TYPE: without charset or collation.
func typeString(tp *types.FieldType) string {
	var s string
	switch tp.GetType() { //nolint:exhaustive
	case mysql.TypeTinyBlob, mysql.TypeBlob, mysql.TypeMediumBlob, mysql.TypeLongBlob:
		// TEXT(n) is stored as whichever TEXT type fits n.
		return types.TypeToStr(tp.GetType(), tp.GetCharset())
	case mysql.TypeVarchar:
		if tp.GetCharset() == "binary" {
			s = fmt.Sprintf("varbinary(%d)", tp.GetFlen())
		} else {
			s = fmt.Sprintf("varchar(%d)", tp.GetFlen())
		}
	default:
		s = tp.CompactStr()
	}
	if mysql.HasUnsignedFlag(tp.GetFlag()) {
		s += " unsigned"
	}
	if mysql.HasZerofillFlag(tp.GetFlag()) {
		s += " zerofill"
	}
	return strings.ToLower(s)
}

// literalDefaultsDenied reports whether MySQL only accepts expression
// defaults for the type. DEFAULT ('') on a TEXT column reaches the AST as a
// plain literal, so it has to be recognized by type.
func literalDefaultsDenied(tp *types.FieldType) bool {
	if tp == nil {
		return false
	}
	switch tp.GetType() { //nolint:exhaustive
	case mysql.TypeTinyBlob, mysql.TypeBlob, mysql.TypeMediumBlob, mysql.TypeLongBlob,
		mysql.TypeJSON, mysql.TypeGeometry:
		return true
	}
	return false
}

// defaultValue returns nil for a missing or NULL default. Literals return
// their value. Anything else, or any default when asExpr is set, is restored
// as SQL text and flagged as an expression.
func defaultValue(expr ast.ExprNode, asExpr bool) (*string, bool) {
	if expr == nil {
		return nil, false
	}
	if v, ok := expr.(ast.ValueExpr); ok {
		if v.GetValue() == nil {
			return nil, false
		}
		if s, ok := v.GetValue().(string); ok && !asExpr {
			return &s, false
		}
	}
	s, err := restoreExpr(expr)
	if err != nil {
		return nil, false
	}
	return &s, asExpr || !isSignedLiteral(expr)
}

// isSignedLiteral matches numeric defaults such as 0 or -1.
func isSignedLiteral(expr ast.ExprNode) bool {
	if u, ok := expr.(*ast.UnaryOperationExpr); ok {
		expr = u.V
	}
	_, ok := expr.(ast.ValueExpr)
	return ok
}

func restoreExpr(expr ast.ExprNode) (string, error) {
	var sb strings.Builder
	rCtx := format.NewRestoreCtx(format.DefaultRestoreFlags|format.RestoreStringWithoutCharset, &sb)
	if err := expr.Restore(rCtx); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// parseTableOptions converts table options to a TableOptions struct
func parseTableOptions(options []*ast.TableOption) *TableOptions {
	tableOpts := &TableOptions{}
	hasOptions := false
	for _, option := range options {
		switch option.Tp { //nolint:exhaustive
		case ast.TableOptionEngine:
			if option.StrValue != "" {
				tableOpts.Engine = &option.StrValue
				hasOptions = true
			}
		case ast.TableOptionCharset:
			if option.StrValue != "" {
				tableOpts.Charset = &option.StrValue
				hasOptions = true
			}
		case ast.TableOptionCollate:
			if option.StrValue != "" {
				tableOpts.Collation = &option.StrValue
				hasOptions = true
			}
		case ast.TableOptionRowFormat:
			if option.UintValue > 0 {
				rowFormat := rowFormatName(option.UintValue)
				tableOpts.RowFormat = &rowFormat
				hasOptions = true
			}
		}
	}
	if !hasOptions {
		return nil
	}
	return tableOpts
}

var rowFormats = map[uint64]string{
	ast.RowFormatDefault:    "DEFAULT",
	ast.RowFormatDynamic:    "DYNAMIC",
	ast.RowFormatFixed:      "FIXED",
	ast.RowFormatCompressed: "COMPRESSED",
	ast.RowFormatRedundant:  "REDUNDANT",
	ast.RowFormatCompact:    "COMPACT",
}

func rowFormatName(v uint64) string {
	if name, ok := rowFormats[v]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", v)
}

func rowFormatValue(name string) (uint64, bool) {
	for v, n := range rowFormats {
		if strings.EqualFold(n, name) {
			return v, true
		}
	}
	return 0, false
}
