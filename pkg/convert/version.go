package convert

import (
	"io"
	"os"

	"github.com/block/mb4convert/pkg/buildinfo"
)

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *VersionCmd) run(w io.Writer) error {
	_, err := io.WriteString(w, buildinfo.Get().String())
	return err
}
