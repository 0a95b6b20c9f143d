// Package osc renders and runs pt-online-schema-change invocations for a
// conversion plan. The tool itself does the copying, throttling and swap;
// this package only decides what to pass to it.
package osc

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultBinary       = "pt-online-schema-change"
	DefaultChunkSize    = 1000
	DefaultCriticalLoad = "Threads_running=50"
	DefaultFKMethod     = "auto"

	defaultLockWaitTimeout = 5 * time.Second
)

var fkMethods = []string{"auto", "rebuild_constraints", "drop_swap", "none"}

// Options are passed through to the tool unchanged.
type Options struct {
	Binary string
	Host   string
	Port   int
	User   string
	// Password is handed to the tool through MYSQL_PWD and never rendered.
	Password               string
	ChunkSize              int
	CriticalLoad           string
	LockWaitTimeout        time.Duration
	AlterForeignKeysMethod string
	// Execute applies the change. Without it the tool runs with --dry-run.
	Execute bool
}

// DefaultOptions returns dry-run options with conservative throttling.
func DefaultOptions() Options {
	return Options{
		Binary:                 DefaultBinary,
		ChunkSize:              DefaultChunkSize,
		CriticalLoad:           DefaultCriticalLoad,
		LockWaitTimeout:        defaultLockWaitTimeout,
		AlterForeignKeysMethod: DefaultFKMethod,
	}
}

func (o Options) Validate() error {
	if o.Binary == "" {
		return errors.New("binary must not be empty")
	}
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.LockWaitTimeout < time.Second {
		return fmt.Errorf("lock wait timeout must be at least 1s, got %s", o.LockWaitTimeout)
	}
	if o.CriticalLoad == "" {
		return errors.New("critical load must not be empty")
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	for _, m := range fkMethods {
		if o.AlterForeignKeysMethod == m {
			return nil
		}
	}
	return fmt.Errorf("unknown alter-foreign-keys-method %q, expected one of %s", o.AlterForeignKeysMethod, strings.Join(fkMethods, ", "))
}

func (o Options) mode() string {
	if o.Execute {
		return "--execute"
	}
	return "--dry-run"
}
