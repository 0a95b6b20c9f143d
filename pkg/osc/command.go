package osc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/block/mb4convert/pkg/plan"
)

// ErrNothingToAlter is returned for actions that carry the no-op marker.
var ErrNothingToAlter = errors.New("table has no conversions")

// Command returns the argv for converting one table.
func Command(db string, action plan.AlterAction, o Options) ([]string, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if action.NoChanges() {
		return nil, fmt.Errorf("%s: %w", action.Table, ErrNothingToAlter)
	}
	dsn, err := o.dsn(db, action.Table)
	if err != nil {
		return nil, err
	}
	return []string{
		o.Binary,
		"--alter", action.AlterSpec(),
		"--chunk-size", strconv.Itoa(o.ChunkSize),
		"--critical-load", o.CriticalLoad,
		"--set-vars", fmt.Sprintf("lock_wait_timeout=%d", int(o.LockWaitTimeout.Seconds())),
		"--alter-foreign-keys-method", o.AlterForeignKeysMethod,
		o.mode(),
		dsn,
	}, nil
}

// dsn renders the tool's comma separated DSN. Its parser has no escape
// syntax, so names containing a comma or equals sign are refused.
func (o Options) dsn(db, table string) (string, error) {
	var parts []string
	add := func(key, value string) error {
		if strings.ContainsAny(value, ",=") {
			return fmt.Errorf("cannot pass %q to %s: name contains ',' or '='", value, o.Binary)
		}
		parts = append(parts, key+"="+value)
		return nil
	}
	if o.Host != "" {
		if err := add("h", o.Host); err != nil {
			return "", err
		}
	}
	if o.Port != 0 {
		parts = append(parts, "P="+strconv.Itoa(o.Port))
	}
	if o.User != "" {
		if err := add("u", o.User); err != nil {
			return "", err
		}
	}
	if err := add("D", db); err != nil {
		return "", err
	}
	if err := add("t", table); err != nil {
		return "", err
	}
	return strings.Join(parts, ","), nil
}

// clientArgs returns the mysql client argv for a single statement.
func (o Options) clientArgs(stmt string) []string {
	args := []string{"mysql"}
	if o.Host != "" {
		args = append(args, "-h", o.Host)
	}
	if o.Port != 0 {
		args = append(args, "-P", strconv.Itoa(o.Port))
	}
	if o.User != "" {
		args = append(args, "-u", o.User)
	}
	return append(args, "-e", stmt)
}
