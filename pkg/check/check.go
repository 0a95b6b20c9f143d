// Package check provides the checks that run before and after a
// conversion is handed to pt-online-schema-change.
package check

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"sync"
)

// ScopeFlag scopes a check
type ScopeFlag uint8

const (
	ScopeNone ScopeFlag = iota
	ScopePreRun
	ScopePostRun
)

// Resources contains the resources needed for conversion checks
type Resources struct {
	DB        *sql.DB
	Database  string
	Charset   string
	Collation string
	// Tables are the tables that will be (or were) converted.
	Tables []string
	// Binary is the pt-online-schema-change executable.
	Binary string
}

type check struct {
	callback func(context.Context, Resources, *slog.Logger) error
	scope    ScopeFlag
}

var (
	checks map[string]check
	lock   sync.Mutex
)

// registerCheck registers a check (callback func) and a scope (aka time) that it is expected to be run
func registerCheck(name string, callback func(context.Context, Resources, *slog.Logger) error, scope ScopeFlag) {
	lock.Lock()
	defer lock.Unlock()
	if checks == nil {
		checks = make(map[string]check)
	}
	checks[name] = check{callback: callback, scope: scope}
}

// RunChecks runs all checks registered for scope, in name order, and
// returns the first failure.
func RunChecks(ctx context.Context, r Resources, logger *slog.Logger, scope ScopeFlag) error {
	lock.Lock()
	names := make([]string, 0, len(checks))
	for name, c := range checks {
		if c.scope == scope {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	callbacks := make([]func(context.Context, Resources, *slog.Logger) error, 0, len(names))
	for _, name := range names {
		callbacks = append(callbacks, checks[name].callback)
	}
	lock.Unlock()
	for i, callback := range callbacks {
		if err := callback(ctx, r, logger); err != nil {
			return err
		}
		logger.Debug("check passed", "check", names[i])
	}
	return nil
}
