// Package dbconn contains a series of database-related utility functions.
package dbconn

import (
	"context"
	"database/sql"
)

type DBConfig struct {
	LockWaitTimeout    int
	MaxOpenConnections int
	InterpolateParams  bool
	// TLS Configuration
	TLSMode            string // TLS connection mode (DISABLED, PREFERRED, REQUIRED, VERIFY_CA, VERIFY_IDENTITY)
	TLSCertificatePath string // Path to custom TLS certificate file
}

func NewDBConfig() *DBConfig {
	return &DBConfig{
		LockWaitTimeout:    30,
		MaxOpenConnections: 4,
		InterpolateParams:  false,
		TLSMode:            "PREFERRED", // default to PREFERRED mode like MySQL
		TLSCertificatePath: "",
	}
}

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Exec is like db.Exec but only returns an error.
// This makes it a little bit easier to use in error handling.
func Exec(ctx context.Context, db Execer, stmt string, args ...any) error {
	_, err := db.ExecContext(ctx, stmt, args...)
	return err
}
