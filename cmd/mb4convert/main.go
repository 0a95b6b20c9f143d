package main

import (
	"github.com/alecthomas/kong"
	"github.com/block/mb4convert/pkg/buildinfo"
	"github.com/block/mb4convert/pkg/convert"
)

// Populated by -ldflags at release time.
var (
	version string
	commit  string
	date    string
)

var cli struct {
	Plan        convert.PlanCmd        `cmd:"" help:"Print the conversion plan as a pt-online-schema-change script or SQL."`
	Run         convert.RunCmd         `cmd:"" help:"Convert every table with pt-online-schema-change."`
	Status      convert.StatusCmd      `cmd:"" help:"List TEXT and VARCHAR columns that are not yet converted."`
	CreateTable convert.CreateTableCmd `cmd:"" help:"Add utf8mb4 table options to a CREATE TABLE statement."`
	Version     convert.VersionCmd     `cmd:"" help:"Print build information."`
}

func main() {
	buildinfo.Set(version, commit, date)
	ctx := kong.Parse(&cli,
		kong.Name("mb4convert"),
		kong.Description("mb4convert: move a MySQL database to utf8mb4 without downtime"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
