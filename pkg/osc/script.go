package osc

import (
	"fmt"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/block/mb4convert/pkg/plan"
)

// Script renders p as a POSIX shell script. The password is read from
// MYSQL_PWD by both the mysql client and the tool, so it never appears in
// the output.
func Script(p *plan.ConversionPlan, o Options) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&sb, "# Convert %s to %s (%s).\n", plan.QuoteIdentifier(p.Database), p.Charset, p.Collation)
	if o.Execute {
		sb.WriteString("# Mode: execute.\n")
	} else {
		sb.WriteString("# Mode: dry run. Re-render with --execute to apply.\n")
	}
	sb.WriteString("# Export MYSQL_PWD before running.\n")
	sb.WriteString("set -e\n\n")
	if !o.Execute {
		sb.WriteString("# ")
	}
	sb.WriteString(shellescape.QuoteCommand(o.clientArgs(p.DatabaseStatement())))
	sb.WriteString("\n")
	for _, action := range p.Actions {
		if action.NoChanges() {
			fmt.Fprintf(&sb, "# %s: %s\n", action.Table, plan.NoChangesMarker)
			continue
		}
		argv, err := Command(p.Database, action, o)
		if err != nil {
			return "", err
		}
		sb.WriteString(shellescape.QuoteCommand(argv))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
