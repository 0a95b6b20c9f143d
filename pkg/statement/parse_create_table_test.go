package statement

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}

func TestParseCreateTableColumns(t *testing.T) {
	sql := `
	CREATE TABLE users (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT 'Anonymous',
		nickname VARCHAR(64) DEFAULT '',
		bio TEXT,
		notes MEDIUMTEXT CHARACTER SET latin1 COLLATE latin1_bin,
		email VARCHAR(255) DEFAULT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=latin1 ROW_FORMAT=COMPACT`

	ct, err := ParseCreateTable(sql)
	require.NoError(t, err)
	assert.Equal(t, "users", ct.TableName)
	require.Len(t, ct.Columns, 7)

	id := ct.Columns[0]
	assert.Equal(t, "id", id.Name)
	assert.True(t, strings.HasPrefix(id.Type, "int"))
	assert.True(t, strings.HasSuffix(id.Type, " unsigned"))
	assert.False(t, id.Nullable)

	name := ct.Columns[1]
	assert.Equal(t, "varchar(255)", name.Type)
	assert.False(t, name.Nullable)
	require.NotNil(t, name.Default)
	assert.Equal(t, "Anonymous", *name.Default)

	nickname := ct.Columns[2]
	assert.True(t, nickname.Nullable)
	require.NotNil(t, nickname.Default)
	assert.Empty(t, *nickname.Default)

	bio := ct.Columns[3]
	assert.Equal(t, "text", bio.Type)
	assert.True(t, bio.Nullable)
	assert.Nil(t, bio.Default)

	notes := ct.Columns[4]
	assert.Equal(t, "mediumtext", notes.Type)
	require.NotNil(t, notes.Charset)
	assert.Equal(t, "latin1", *notes.Charset)
	require.NotNil(t, notes.Collation)
	assert.Equal(t, "latin1_bin", *notes.Collation)

	email := ct.Columns[5]
	assert.Nil(t, email.Default, "DEFAULT NULL is no default")

	createdAt := ct.Columns[6]
	assert.False(t, createdAt.Nullable)
	require.NotNil(t, createdAt.Default)
	assert.Contains(t, strings.ToUpper(*createdAt.Default), "CURRENT_TIMESTAMP")

	require.NotNil(t, ct.TableOptions)
	require.NotNil(t, ct.TableOptions.Engine)
	assert.True(t, strings.EqualFold("InnoDB", *ct.TableOptions.Engine))
	require.NotNil(t, ct.TableOptions.Charset)
	assert.True(t, strings.EqualFold("latin1", *ct.TableOptions.Charset))
	require.NotNil(t, ct.TableOptions.RowFormat)
	assert.Equal(t, "COMPACT", *ct.TableOptions.RowFormat)
}

func TestParseCreateTableBinaryTypes(t *testing.T) {
	ct, err := ParseCreateTable("CREATE TABLE t1 (a varbinary(16), b blob, c varchar(16))")
	require.NoError(t, err)
	require.Len(t, ct.Columns, 3)
	assert.Equal(t, "varbinary(16)", ct.Columns[0].Type)
	assert.Equal(t, "blob", ct.Columns[1].Type)
	assert.Equal(t, "varchar(16)", ct.Columns[2].Type)
}

func TestParseCreateTableExpressionDefaults(t *testing.T) {
	ct, err := ParseCreateTable(`CREATE TABLE t1 (
		token varchar(36) NOT NULL DEFAULT (uuid()),
		notes text DEFAULT (''),
		label varchar(36) DEFAULT 'uuid()',
		code varchar(8) DEFAULT -1,
		created_at datetime DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	require.Len(t, ct.Columns, 5)

	token := ct.Columns[0]
	require.NotNil(t, token.Default)
	assert.True(t, token.DefaultExpr)
	assert.Equal(t, "UUID()", *token.Default)

	notes := ct.Columns[1]
	require.NotNil(t, notes.Default)
	assert.True(t, notes.DefaultExpr, "text columns only take expression defaults")
	assert.Equal(t, "''", *notes.Default)

	label := ct.Columns[2]
	require.NotNil(t, label.Default)
	assert.False(t, label.DefaultExpr)
	assert.Equal(t, "uuid()", *label.Default)

	code := ct.Columns[3]
	require.NotNil(t, code.Default)
	assert.False(t, code.DefaultExpr)
	assert.Equal(t, "-1", *code.Default)

	assert.True(t, ct.Columns[4].DefaultExpr)
}

func TestParseCreateTableNoOptions(t *testing.T) {
	ct, err := ParseCreateTable("CREATE TABLE t1 (a int)")
	require.NoError(t, err)
	assert.Equal(t, "t1", ct.TableName)
	assert.Nil(t, ct.TableOptions)
}

func TestParseCreateTableErrors(t *testing.T) {
	_, err := ParseCreateTable("CREATE TABLE t1 (a int")
	assert.Error(t, err)

	_, err = ParseCreateTable("ALTER TABLE t1 ADD COLUMN b int")
	assert.ErrorIs(t, err, ErrNotCreateTable)

	_, err = ParseCreateTable("CREATE TABLE t1 (a int); CREATE TABLE t2 (a int)")
	assert.ErrorContains(t, err, "expected exactly one statement")
}
