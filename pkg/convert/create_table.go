package convert

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/block/mb4convert/pkg/statement"
)

// CreateTableCmd adds the target table options to a CREATE TABLE statement,
// so new tables start out converted.
type CreateTableCmd struct {
	File      string `arg:"" help:"File containing the CREATE TABLE statement, or - for stdin" optional:"" default:"-"`
	Charset   string `name:"charset" help:"Default character set" optional:"" default:"utf8mb4"`
	Collation string `name:"collation" help:"Default collation" optional:"" default:"utf8mb4_unicode_ci"`
	RowFormat string `name:"row-format" help:"Row format" optional:"" default:"DYNAMIC"`
}

func (c *CreateTableCmd) Run() error {
	return c.run(os.Stdin, os.Stdout)
}

func (c *CreateTableCmd) run(stdin io.Reader, w io.Writer) error {
	var (
		sql []byte
		err error
	)
	if c.File == "" || c.File == "-" {
		sql, err = io.ReadAll(stdin)
	} else {
		sql, err = os.ReadFile(c.File)
	}
	if err != nil {
		return err
	}
	stmt := strings.TrimSuffix(strings.TrimSpace(string(sql)), ";")
	out, err := statement.ApplyTableDefaults(stmt, statement.NewTableDefaults(c.Charset, c.Collation, c.RowFormat))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s;\n", out)
	return err
}
