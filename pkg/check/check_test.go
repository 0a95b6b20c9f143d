package check

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
	os.Exit(m.Run())
}

const scopeTest ScopeFlag = 100

func TestRunChecksOrderAndScope(t *testing.T) {
	var ran []string
	record := func(name string, err error) func(context.Context, Resources, *slog.Logger) error {
		return func(context.Context, Resources, *slog.Logger) error {
			ran = append(ran, name)
			return err
		}
	}
	registerCheck("test-b", record("b", nil), scopeTest)
	registerCheck("test-a", record("a", nil), scopeTest)
	registerCheck("test-other", record("other", nil), scopeTest+1)

	require.NoError(t, RunChecks(t.Context(), Resources{}, slog.Default(), scopeTest))
	assert.Equal(t, []string{"a", "b"}, ran)

	failure := errors.New("not ready")
	registerCheck("test-a", record("a", failure), scopeTest)
	ran = nil
	assert.ErrorIs(t, RunChecks(t.Context(), Resources{}, slog.Default(), scopeTest), failure)
	assert.Equal(t, []string{"a"}, ran)
}

func TestParseVersion(t *testing.T) {
	for input, expected := range map[string]string{
		"8.0.36":                  "8.0.36",
		"8.0.36-log":              "8.0.36",
		"5.7.44-0ubuntu0.18.04.1": "5.7.44",
		"10.6.12-MariaDB":         "10.6.12",
	} {
		v, err := parseVersion(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, v.String())
	}
	_, err := parseVersion("eight")
	assert.ErrorContains(t, err, `unrecognized server version "eight"`)
}

func TestVersionCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := Resources{DB: db}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT VERSION()")).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("8.0.36-log"))
	assert.NoError(t, versionCheck(t.Context(), r, slog.Default()))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT VERSION()")).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("5.5.2"))
	assert.ErrorContains(t, versionCheck(t.Context(), r, slog.Default()), "does not support utf8mb4")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT VERSION()")).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("5.5.3"))
	assert.NoError(t, versionCheck(t.Context(), r, slog.Default()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollationCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := Resources{DB: db, Charset: "utf8mb4", Collation: "utf8mb4_unicode_ci"}

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLLATIONS").WithArgs("utf8mb4", "utf8mb4_unicode_ci", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	assert.NoError(t, collationCheck(t.Context(), r, slog.Default()))

	r.Collation = "latin1_swedish_ci"
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLLATIONS").WithArgs("utf8mb4", "latin1_swedish_ci").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	assert.ErrorContains(t, collationCheck(t.Context(), r, slog.Default()), "collation latin1_swedish_ci is not valid for character set utf8mb4")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToolCheck(t *testing.T) {
	assert.NoError(t, toolCheck(t.Context(), Resources{Binary: "sh"}, slog.Default()))
	assert.ErrorContains(t, toolCheck(t.Context(), Resources{Binary: "pt-online-schema-change-does-not-exist"}, slog.Default()), "install percona-toolkit")
}

func TestPrimaryKeyCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := Resources{DB: db, Database: "shop", Tables: []string{"customers", "logs", "orders"}}

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.STATISTICS").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("customers").AddRow("orders"))
	assert.ErrorContains(t, primaryKeyCheck(t.Context(), r, slog.Default()), "cannot be converted online: logs")

	r.Tables = []string{"customers"}
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.STATISTICS").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("customers"))
	assert.NoError(t, primaryKeyCheck(t.Context(), r, slog.Default()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggersCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := Resources{DB: db, Database: "shop", Tables: []string{"customers", "orders"}}

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TRIGGERS").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"EVENT_OBJECT_TABLE"}).AddRow("orders").AddRow("audit"))
	assert.ErrorContains(t, triggersCheck(t.Context(), r, slog.Default()), "existing triggers cannot be converted online: orders")

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TRIGGERS").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"EVENT_OBJECT_TABLE"}))
	assert.NoError(t, triggersCheck(t.Context(), r, slog.Default()))

	failure := errors.New("Error 1142: SELECT command denied")
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TRIGGERS").WillReturnError(failure)
	assert.ErrorIs(t, triggersCheck(t.Context(), r, slog.Default()), failure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectSchema(mock sqlmock.Sqlmock, columns *sqlmock.Rows) {
	mock.ExpectExec(regexp.QuoteMeta("START TRANSACTION WITH CONSISTENT SNAPSHOT, READ ONLY")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "ROW_FORMAT"}).AddRow("customers", "Dynamic").AddRow("orders", "Compact"))
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").WithArgs("shop").WillReturnRows(columns)
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))
}

func columnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT", "CHARACTER_SET_NAME", "COLLATION_NAME", "EXTRA"})
}

func TestTableSetLogsCloseError(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The NULL name fails the scan, so the rows are closed by the deferred
	// close rather than by reaching the end.
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TRIGGERS").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"EVENT_OBJECT_TABLE"}).
			AddRow(nil).
			CloseError(errors.New("connection reset"))).
		RowsWillBeClosed()
	_, err = tableSet(t.Context(), db, triggersQuery, "shop")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), "deferred close failed")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestConvertedCheck(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	r := Resources{DB: db, Database: "shop", Charset: "utf8mb4", Collation: "utf8mb4_unicode_ci", Tables: []string{"customers"}}

	// orders was not part of this run, so its latin1 column is ignored.
	expectSchema(mock, columnRows().
		AddRow("customers", "id", "int", "NO", nil, "", "", "auto_increment").
		AddRow("customers", "name", "varchar(255)", "NO", "", "utf8mb4", "utf8mb4_unicode_ci", "").
		AddRow("orders", "note", "text", "YES", nil, "latin1", "latin1_swedish_ci", ""))
	assert.NoError(t, convertedCheck(t.Context(), r, slog.Default()))

	expectSchema(mock, columnRows().
		AddRow("customers", "name", "varchar(255)", "NO", "", "latin1", "latin1_swedish_ci", ""))
	assert.ErrorContains(t, convertedCheck(t.Context(), r, slog.Default()), "1 columns were not converted, first: customers.name: latin1 (latin1_swedish_ci)")
	assert.NoError(t, mock.ExpectationsWereMet())
}
