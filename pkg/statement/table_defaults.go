package statement

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
)

// TableDefaults are the table options every newly created table should
// carry. Empty fields are left alone.
type TableDefaults struct {
	Engine    string
	Charset   string
	Collation string
	RowFormat string
}

// NewTableDefaults returns InnoDB defaults for the given target.
func NewTableDefaults(charset, collation, rowFormat string) TableDefaults {
	return TableDefaults{
		Engine:    "InnoDB",
		Charset:   charset,
		Collation: collation,
		RowFormat: rowFormat,
	}
}

// ApplyTableDefaults adds the options from d that the CREATE TABLE statement
// does not already specify, and returns the restored statement. Options
// given explicitly in the statement always win. A collation is only added
// when it belongs with the table's charset, and a charset is not added next
// to an explicit collation, which already implies one.
func ApplyTableDefaults(sql string, d TableDefaults) (string, error) {
	ct, err := ParseCreateTable(sql)
	if err != nil {
		return "", err
	}
	opts := ct.TableOptions
	if opts == nil {
		opts = &TableOptions{}
	}
	raw := ct.Raw
	if d.Engine != "" && opts.Engine == nil {
		raw.Options = append(raw.Options, &ast.TableOption{Tp: ast.TableOptionEngine, StrValue: d.Engine})
	}
	if d.Charset != "" && opts.Charset == nil && opts.Collation == nil {
		raw.Options = append(raw.Options, &ast.TableOption{Tp: ast.TableOptionCharset, StrValue: d.Charset})
	}
	charsetMatches := opts.Charset == nil || strings.EqualFold(*opts.Charset, d.Charset)
	if d.Collation != "" && opts.Collation == nil && charsetMatches {
		raw.Options = append(raw.Options, &ast.TableOption{Tp: ast.TableOptionCollate, StrValue: d.Collation})
	}
	if d.RowFormat != "" && opts.RowFormat == nil {
		v, ok := rowFormatValue(d.RowFormat)
		if !ok {
			return "", fmt.Errorf("unknown row format %q", d.RowFormat)
		}
		raw.Options = append(raw.Options, &ast.TableOption{Tp: ast.TableOptionRowFormat, UintValue: v})
	}
	var sb strings.Builder
	rCtx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := raw.Restore(rCtx); err != nil {
		return "", fmt.Errorf("could not restore CREATE TABLE statement: %w", err)
	}
	return sb.String(), nil
}
