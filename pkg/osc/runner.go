package osc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/block/mb4convert/pkg/dbconn"
	"github.com/block/mb4convert/pkg/plan"
	"github.com/block/mb4convert/pkg/status"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ExecFunc runs argv with env appended to the process environment.
type ExecFunc func(ctx context.Context, argv []string, env []string, stdout io.Writer) error

// Runner applies a plan, running the tool once per table that needs it.
type Runner struct {
	Options Options
	// Parallel is the number of tables converted at once. Values below 1
	// are treated as 1.
	Parallel int
	Logger   *slog.Logger
	// Exec defaults to running the process with os/exec.
	Exec ExecFunc
	// Stdout receives the tool's output. Defaults to os.Stdout.
	Stdout io.Writer

	state     status.State
	total     atomic.Int64
	converted atomic.Int64
}

func NewRunner(o Options, parallel int, logger *slog.Logger) *Runner {
	return &Runner{
		Options:  o,
		Parallel: parallel,
		Logger:   logger,
	}
}

// Run applies the database statement through db when executing, then
// converts each pending table. The first failure cancels the tables still
// running and is returned.
func (r *Runner) Run(ctx context.Context, db dbconn.Execer, p *plan.ConversionPlan) error {
	if err := r.Options.Validate(); err != nil {
		return err
	}
	argvs := make(map[string][]string)
	for _, action := range p.Pending() {
		argv, err := Command(p.Database, action, r.Options)
		if err != nil {
			return err
		}
		argvs[action.Table] = argv
	}

	r.state.Set(status.Initial)
	r.total.Store(int64(len(argvs)))
	r.converted.Store(0)
	logger := r.logger().With("run-id", uuid.New().String(), "database", p.Database)
	startTime := time.Now()
	logger.Info("starting conversion",
		"charset", p.Charset,
		"collation", p.Collation,
		"tables", len(p.Actions),
		"pending", len(p.Pending()),
		"execute", r.Options.Execute,
		"parallel", r.parallel(),
	)

	r.state.Set(status.AlterDatabase)
	if r.Options.Execute {
		if err := dbconn.Exec(ctx, db, p.DatabaseStatement()); err != nil {
			r.state.Set(status.Failed)
			return fmt.Errorf("failed to alter database defaults: %w", err)
		}
		logger.Info("database defaults changed")
	} else {
		logger.Info("dry run, not changing database defaults", "statement", p.DatabaseStatement())
	}

	r.state.Set(status.ConvertTables)
	stop := status.WatchTask(ctx, r, logger)
	defer stop()
	env := r.env()
	stdout := &lockedWriter{w: r.stdout()}
	g, errGrpCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel())
	for _, action := range p.Actions {
		if action.NoChanges() {
			logger.Info(plan.NoChangesMarker, "table", action.Table)
			continue
		}
		argv := argvs[action.Table]
		g.Go(func() error {
			if err := errGrpCtx.Err(); err != nil {
				return err
			}
			tableStart := time.Now()
			logger.Info("converting table", "table", action.Table, "columns", len(action.Clauses))
			if err := r.exec()(errGrpCtx, argv, env, stdout); err != nil {
				logger.Error("table conversion failed", "table", action.Table, "error", err)
				return fmt.Errorf("table %s: %w", action.Table, err)
			}
			r.converted.Add(1)
			logger.Info("table converted", "table", action.Table, "duration", time.Since(tableStart).String())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.state.Set(status.Failed)
		return err
	}
	r.state.Set(status.Complete)
	logger.Info("conversion complete", "duration", time.Since(startTime).String())
	return nil
}

func (r *Runner) Progress() status.Progress {
	return status.Progress{
		CurrentState: r.state.Get(),
		Summary:      fmt.Sprintf("%d/%d tables %s", r.converted.Load(), r.total.Load(), r.state.Get()),
	}
}

func (r *Runner) Status() string {
	return fmt.Sprintf("conversion status: state=%s converted=%d/%d", r.state.Get(), r.converted.Load(), r.total.Load())
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) parallel() int {
	if r.Parallel < 1 {
		return 1
	}
	return r.Parallel
}

func (r *Runner) exec() ExecFunc {
	if r.Exec == nil {
		return execCommand
	}
	return r.Exec
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout == nil {
		return os.Stdout
	}
	return r.Stdout
}

func (r *Runner) env() []string {
	if r.Options.Password == "" {
		return nil
	}
	return []string{"MYSQL_PWD=" + r.Options.Password}
}

func execCommand(ctx context.Context, argv []string, env []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = stdout
	cmd.Stderr = stdout
	return cmd.Run()
}

// lockedWriter serializes writes from concurrently running tools.
type lockedWriter struct {
	sync.Mutex
	w io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.Lock()
	defer l.Unlock()
	return l.w.Write(p)
}
