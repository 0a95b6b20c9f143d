package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/block/mb4convert/pkg/plan"
	"github.com/block/mb4convert/pkg/utils"
)

// ErrPendingColumns is returned by status when any column still needs
// converting, so that scripts can test the exit code.
var ErrPendingColumns = errors.New("columns are not yet converted")

// StatusCmd lists TEXT and VARCHAR columns not yet on the target charset.
type StatusCmd struct {
	Connection
	Target
}

func (c *StatusCmd) Run() error {
	return c.run(context.TODO(), os.Stdout)
}

func (c *StatusCmd) run(ctx context.Context, w io.Writer) error {
	spec, db, err := c.loadSchema(ctx, c.Target)
	if err != nil {
		return err
	}
	utils.CloseAndLog(db)
	pending, err := plan.CheckPending(spec)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		_, err = fmt.Fprintf(w, "%s: all columns are %s (%s)\n", spec.Name, spec.Charset, spec.Collation)
		return err
	}
	for _, col := range pending {
		if _, err := fmt.Fprintln(w, col.String()); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %d %w", spec.Name, len(pending), ErrPendingColumns)
}
