package convert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/block/mb4convert/pkg/check"
	"github.com/block/mb4convert/pkg/osc"
	"github.com/block/mb4convert/pkg/plan"
	"github.com/block/mb4convert/pkg/utils"
)

// PlanCmd prints the conversion plan without touching the server.
type PlanCmd struct {
	Connection
	Target
	OSC
	Format  string `name:"format" help:"Output format: a pt-online-schema-change shell script, or plain ALTER statements" optional:"" default:"script" enum:"script,sql"`
	Execute bool   `name:"execute" help:"Render the script in execute mode instead of --dry-run" optional:"" default:"false"`
}

func (c *PlanCmd) Run() error {
	return c.run(context.TODO(), os.Stdout)
}

func (c *PlanCmd) run(ctx context.Context, w io.Writer) error {
	spec, db, err := c.loadSchema(ctx, c.Target)
	if err != nil {
		return err
	}
	utils.CloseAndLog(db)
	p, err := plan.GeneratePlan(spec)
	if err != nil {
		return err
	}
	if c.Format == "sql" {
		_, err = io.WriteString(w, p.String())
		return err
	}
	o, err := c.oscOptions(c.OSC, c.Execute)
	if err != nil {
		return err
	}
	script, err := osc.Script(p, o)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, script)
	return err
}

// RunCmd generates the plan and runs pt-online-schema-change for each table.
type RunCmd struct {
	Connection
	Target
	OSC
	Execute  bool `name:"execute" help:"Apply the conversion. Without it the tool runs with --dry-run" optional:"" default:"false"`
	Parallel int  `name:"parallel" help:"Number of tables converted at once" optional:"" default:"1"`
}

func (c *RunCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(ctx, slog.Default(), nil)
}

func (c *RunCmd) run(ctx context.Context, logger *slog.Logger, exec osc.ExecFunc) error {
	if c.SourceDir != "" {
		return errors.New("run needs a server connection, --source-dir can only be used with plan and status")
	}
	spec, db, err := c.loadSchema(ctx, c.Target)
	if err != nil {
		return err
	}
	defer utils.CloseAndLog(db)
	p, err := plan.GeneratePlan(spec)
	if err != nil {
		return err
	}
	o, err := c.oscOptions(c.OSC, c.Execute)
	if err != nil {
		return err
	}
	resources := check.Resources{
		DB:        db,
		Database:  p.Database,
		Charset:   p.Charset,
		Collation: p.Collation,
		Binary:    o.Binary,
	}
	for _, action := range p.Pending() {
		resources.Tables = append(resources.Tables, action.Table)
	}
	if err := check.RunChecks(ctx, resources, logger, check.ScopePreRun); err != nil {
		return err
	}
	runner := osc.NewRunner(o, c.Parallel, logger)
	runner.Exec = exec
	if err := runner.Run(ctx, db, p); err != nil {
		return err
	}
	if !c.Execute {
		return nil
	}
	return check.RunChecks(ctx, resources, logger, check.ScopePostRun)
}
