package plan

import (
	"fmt"
	"strings"
)

// PendingColumn is a TEXT or VARCHAR column whose current character set or
// collation differs from the target.
type PendingColumn struct {
	Table     string
	Column    string
	Charset   string
	Collation string
}

func (p PendingColumn) String() string {
	return fmt.Sprintf("%s.%s: %s (%s)", p.Table, p.Column, p.Charset, p.Collation)
}

// CheckPending reports the string columns that are not yet on the target
// character set and collation. Columns without a reported charset are
// treated as pending. Unlike GeneratePlan, this reads the current settings,
// which makes it useful to confirm a conversion has completed.
func CheckPending(db DatabaseSpec) ([]PendingColumn, error) {
	if db.Charset == "" || db.Collation == "" {
		return nil, ErrMissingTarget
	}
	var pending []PendingColumn
	for _, t := range db.Tables {
		for _, col := range t.Columns {
			desc, err := ParseType(col.Type)
			if err != nil {
				return nil, &ColumnError{Table: t.Name, Column: col.Name, Type: col.Type, Err: err}
			}
			if !desc.IsString() {
				continue
			}
			if strings.EqualFold(col.Charset, db.Charset) && strings.EqualFold(col.Collation, db.Collation) {
				continue
			}
			pending = append(pending, PendingColumn{
				Table:     t.Name,
				Column:    col.Name,
				Charset:   col.Charset,
				Collation: col.Collation,
			})
		}
	}
	return pending, nil
}
