package utils

import (
	"log/slog"
	"reflect"
)

// Closer is satisfied by io.Closer, *sql.DB, *sql.Conn and *sql.Rows.
type Closer interface {
	Close() error
}

// CloseAndLog closes closer for use in defer statements, where an error
// can only be logged. Nil values, including typed nil pointers such as a
// nil *sql.DB, are ignored.
func CloseAndLog(closer Closer) {
	if isNil(closer) {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Error("deferred close failed", "error", err)
	}
}

func isNil(closer Closer) bool {
	if closer == nil {
		return true
	}
	v := reflect.ValueOf(closer)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
