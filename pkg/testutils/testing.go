// Package testutils contains some common utilities used exclusively
// by the test suite.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func DSN() string {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		return "mb4convert:mb4convert@tcp(127.0.0.1:3306)/test"
	}
	return dsn
}

// RequireMySQL skips the test unless MYSQL_DSN points at a server.
func RequireMySQL(t *testing.T) {
	t.Helper()
	if os.Getenv("MYSQL_DSN") == "" {
		t.Skip("MYSQL_DSN is not set")
	}
}

// DSNForDatabase returns a DSN for a specific database name
func DSNForDatabase(dbName string) string {
	baseDSN := DSN()
	// Replace the database part of the DSN
	parts := strings.Split(baseDSN, "/")
	if len(parts) >= 2 {
		parts[len(parts)-1] = dbName
		return strings.Join(parts, "/")
	}
	return baseDSN
}

// CreateUniqueTestDatabase creates a unique database for a test
// and drops it when the test finishes.
func CreateUniqueTestDatabase(t *testing.T) string {
	t.Helper()

	dbName := fmt.Sprintf("t_%s_%d",
		strings.ReplaceAll(strings.ToLower(t.Name()), "/", "_"),
		os.Getpid())

	baseDSN := DSN()
	lastSlash := strings.LastIndex(baseDSN, "/")
	if lastSlash >= 0 {
		// Keep everything up to and including the slash, but remove the database name
		rootDSN := baseDSN[:lastSlash+1]

		db, err := sql.Open("mysql", rootDSN)
		assert.NoError(t, err)
		defer func() {
			_ = db.Close()
		}()
		_, err = db.ExecContext(t.Context(), "CREATE DATABASE IF NOT EXISTS "+dbName+" CHARACTER SET latin1")
		assert.NoError(t, err)

		t.Cleanup(func() {
			db, err := sql.Open("mysql", rootDSN)
			assert.NoError(t, err)
			defer func() {
				_ = db.Close()
			}()
			_, err = db.ExecContext(context.Background(), "DROP DATABASE IF EXISTS "+dbName)
			assert.NoError(t, err)
		})
	}
	return dbName
}

// RunSQLInDatabase runs SQL in a specific database
func RunSQLInDatabase(t *testing.T, dbName, stmt string) {
	t.Helper()
	db, err := sql.Open("mysql", DSNForDatabase(dbName))
	assert.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	_, err = db.ExecContext(t.Context(), stmt)
	assert.NoError(t, err)
}
