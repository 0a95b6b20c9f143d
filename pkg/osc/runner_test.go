package osc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/block/mb4convert/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	sync.Mutex
	calls [][]string
	envs  [][]string
	fail  string
}

func (f *fakeExec) run(ctx context.Context, argv []string, env []string, stdout io.Writer) error {
	f.Lock()
	f.calls = append(f.calls, argv)
	f.envs = append(f.envs, env)
	f.Unlock()
	table := argv[len(argv)-1]
	fmt.Fprintf(stdout, "altered %s\n", table)
	if f.fail != "" && strings.HasSuffix(table, "t="+f.fail) {
		return errors.New("exit status 1")
	}
	return ctx.Err()
}

func (f *fakeExec) tables() []string {
	f.Lock()
	defer f.Unlock()
	var tables []string
	for _, argv := range f.calls {
		tables = append(tables, argv[len(argv)-1])
	}
	sort.Strings(tables)
	return tables
}

func TestRunnerDryRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fake := &fakeExec{}
	var out bytes.Buffer
	r := NewRunner(DefaultOptions(), 2, slog.Default())
	r.Exec = fake.run
	r.Stdout = &out
	require.NoError(t, r.Run(t.Context(), db, testPlan(t)))

	// No statements are sent to the server in dry-run mode.
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []string{"D=shop,t=customers", "D=shop,t=notes"}, fake.tables())
	for _, argv := range fake.calls {
		assert.Contains(t, argv, "--dry-run")
	}
	assert.Contains(t, out.String(), "altered D=shop,t=notes\n")

	progress := r.Progress()
	assert.Equal(t, status.Complete, progress.CurrentState)
	assert.Equal(t, "2/2 tables complete", progress.Summary)
	assert.Equal(t, "conversion status: state=complete converted=2/2", r.Status())
}

func TestRunnerExecute(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("ALTER DATABASE `shop` CHARACTER SET = utf8mb4 COLLATE = utf8mb4_unicode_ci").
		WillReturnResult(sqlmock.NewResult(0, 1))

	o := DefaultOptions()
	o.Execute = true
	o.Password = "hunter2"
	fake := &fakeExec{}
	r := NewRunner(o, 4, slog.Default())
	r.Exec = fake.run
	r.Stdout = io.Discard
	require.NoError(t, r.Run(t.Context(), db, testPlan(t)))

	assert.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, fake.calls, 2)
	for i, argv := range fake.calls {
		assert.Contains(t, argv, "--execute")
		assert.NotContains(t, argv, "hunter2")
		assert.Equal(t, []string{"MYSQL_PWD=hunter2"}, fake.envs[i])
	}
}

func TestRunnerDatabaseStatementFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("ALTER DATABASE").WillReturnError(errors.New("Error 1044: Access denied"))

	o := DefaultOptions()
	o.Execute = true
	fake := &fakeExec{}
	r := NewRunner(o, 1, nil)
	r.Exec = fake.run
	err = r.Run(t.Context(), db, testPlan(t))
	assert.ErrorContains(t, err, "failed to alter database defaults")
	assert.Empty(t, fake.calls, "no table is touched after the database statement fails")
}

func TestRunnerStopsOnFirstFailure(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var started atomic.Int32
	fake := &fakeExec{fail: "customers"}
	r := NewRunner(DefaultOptions(), 1, slog.Default())
	r.Stdout = io.Discard
	r.Exec = func(ctx context.Context, argv []string, env []string, stdout io.Writer) error {
		started.Add(1)
		return fake.run(ctx, argv, env, stdout)
	}
	err = r.Run(t.Context(), db, testPlan(t))
	require.Error(t, err)
	assert.ErrorContains(t, err, "table customers: exit status 1")
	// With one worker the failing first table prevents the next from starting.
	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, status.Failed, r.Progress().CurrentState)
	assert.Equal(t, "0/2 tables failed", r.Progress().Summary)
}

func TestRunnerInvalidOptions(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	o := DefaultOptions()
	o.ChunkSize = 0
	r := NewRunner(o, 1, slog.Default())
	r.Exec = (&fakeExec{}).run
	assert.Error(t, r.Run(t.Context(), db, testPlan(t)))
}

func TestRunnerCanceled(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	fake := &fakeExec{}
	r := NewRunner(DefaultOptions(), 2, slog.Default())
	r.Exec = fake.run
	r.Stdout = io.Discard
	assert.ErrorIs(t, r.Run(ctx, db, testPlan(t)), context.Canceled)
	assert.Empty(t, fake.calls)
}
