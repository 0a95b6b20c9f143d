// Package convert contains the commands that plan, run and verify a
// conversion of a MySQL database to utf8mb4.
package convert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/block/mb4convert/pkg/dbconn"
	"github.com/block/mb4convert/pkg/osc"
	"github.com/block/mb4convert/pkg/plan"
	"github.com/block/mb4convert/pkg/schema"
	"github.com/block/mb4convert/pkg/utils"
	"github.com/go-sql-driver/mysql"
)

// Connection selects where the schema is read from: a server (flags, --conf
// file or --dsn) or a directory of CREATE TABLE files.
type Connection struct {
	Host     string `name:"host" help:"Hostname, optionally with :port" optional:""`
	Username string `name:"username" help:"User" optional:""`
	Password string `name:"password" help:"Password" optional:""`
	Database string `name:"database" help:"Database to convert" optional:""`
	ConfFile string `name:"conf" help:"MySQL option file; its [client] section fills in unset connection flags" optional:"" type:"existingfile"`
	DSN      string `name:"dsn" help:"Go MySQL driver DSN. Replaces the other connection flags" optional:"" env:"MYSQL_DSN"`
	// TLS Configuration
	TLSMode            string `name:"tls-mode" help:"TLS connection mode (case insensitive): DISABLED, PREFERRED (default), REQUIRED, VERIFY_CA, VERIFY_IDENTITY" optional:""`
	TLSCertificatePath string `name:"tls-ca" help:"Path to custom TLS CA certificate file" optional:""`
	LockWaitTimeout    time.Duration `name:"session-lock-wait-timeout" help:"lock_wait_timeout for our own session" optional:"" default:"30s"`

	SourceDir string `name:"source-dir" help:"Read CREATE TABLE statements from *.sql files in this directory instead of a server" optional:"" type:"existingdir"`
}

// Target holds the conversion target flags.
type Target struct {
	Charset      string `name:"charset" help:"Target character set" optional:"" default:"utf8mb4"`
	Collation    string `name:"collation" help:"Target collation" optional:"" default:"utf8mb4_unicode_ci"`
	RowFormat    string `name:"row-format" help:"Row format for converted tables. Empty keeps the current one" optional:"" default:"DYNAMIC"`
	IgnoreTables string `name:"ignore-tables" help:"Regex of table names to leave alone" optional:""`
}

// OSC holds the options passed through to pt-online-schema-change.
type OSC struct {
	Binary                 string        `name:"osc-binary" help:"Path to pt-online-schema-change" optional:"" default:"pt-online-schema-change"`
	ChunkSize              int           `name:"chunk-size" help:"Rows copied per chunk" optional:"" default:"1000"`
	CriticalLoad           string        `name:"critical-load" help:"Status variable threshold at which the copy aborts" optional:"" default:"Threads_running=50"`
	LockWaitTimeout        time.Duration `name:"lock-wait-timeout" help:"lock_wait_timeout for the tool's sessions" optional:"" default:"5s"`
	AlterForeignKeysMethod string        `name:"alter-foreign-keys-method" help:"How to handle foreign keys that reference converted tables" optional:"" default:"auto" enum:"auto,rebuild_constraints,drop_swap,none"`
}

var errConflictingSource = errors.New("--source-dir cannot be combined with --dsn")

func (c *Connection) normalize() error {
	if c.SourceDir != "" {
		if c.DSN != "" {
			return errConflictingSource
		}
		return nil
	}
	if c.DSN != "" {
		return nil
	}
	conf, err := newConfParams(c.ConfFile)
	if err != nil {
		return err
	}
	if c.Host == "" {
		c.Host = conf.GetHost()
	}
	if _, _, err := net.SplitHostPort(c.Host); err != nil {
		c.Host = net.JoinHostPort(c.Host, strconv.Itoa(conf.GetPort()))
	}
	if c.Username == "" {
		c.Username = conf.GetUser()
	}
	if c.Password == "" {
		c.Password = conf.GetPassword()
	}
	if c.Database == "" {
		c.Database = conf.GetDatabase()
	}
	if c.TLSMode == "" {
		c.TLSMode = conf.GetTLSMode()
	}
	if c.TLSCertificatePath == "" {
		c.TLSCertificatePath = conf.GetTLSCA()
	}
	return nil
}

func (c *Connection) dsn() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	return dbconn.NewDSN(c.Host, c.Username, c.Password, c.Database)
}

func (c *Connection) dbConfig() *dbconn.DBConfig {
	config := dbconn.NewDBConfig()
	if c.LockWaitTimeout > 0 {
		config.LockWaitTimeout = int(c.LockWaitTimeout.Seconds())
	}
	if c.TLSMode != "" {
		config.TLSMode = c.TLSMode
	}
	config.TLSCertificatePath = c.TLSCertificatePath
	return config
}

func (c *Connection) open() (*sql.DB, error) {
	dsn, err := c.dsn()
	if err != nil {
		return nil, err
	}
	return dbconn.New(dsn, c.dbConfig())
}

// loadSchema reads the schema and applies the target. When the schema comes
// from a server the open connection is returned and must be closed by the
// caller; it is nil for --source-dir.
func (c *Connection) loadSchema(ctx context.Context, t Target) (plan.DatabaseSpec, *sql.DB, error) {
	if err := c.normalize(); err != nil {
		return plan.DatabaseSpec{}, nil, err
	}
	target := schema.Target{
		Database:  c.Database,
		Charset:   t.Charset,
		Collation: t.Collation,
		RowFormat: t.RowFormat,
	}
	var (
		spec plan.DatabaseSpec
		db   *sql.DB
		err  error
	)
	if c.SourceDir != "" {
		spec, err = schema.LoadFromDir(c.SourceDir, target)
	} else {
		db, err = c.open()
		if err != nil {
			return plan.DatabaseSpec{}, nil, err
		}
		spec, err = schema.LoadFromDB(ctx, db, target)
	}
	if err == nil {
		spec, err = schema.IgnoreTables(spec, t.IgnoreTables)
	}
	if err != nil {
		utils.CloseAndLog(db)
		return plan.DatabaseSpec{}, nil, err
	}
	return spec, db, nil
}

// oscOptions fills in the tool's connection options. With --source-dir
// there is no server, so the tool falls back to its own defaults.
func (c *Connection) oscOptions(f OSC, execute bool) (osc.Options, error) {
	o := osc.DefaultOptions()
	o.Binary = f.Binary
	o.ChunkSize = f.ChunkSize
	o.CriticalLoad = f.CriticalLoad
	o.LockWaitTimeout = f.LockWaitTimeout
	o.AlterForeignKeysMethod = f.AlterForeignKeysMethod
	o.Execute = execute
	if c.SourceDir != "" {
		return o, o.Validate()
	}
	dsn, err := c.dsn()
	if err != nil {
		return osc.Options{}, err
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return osc.Options{}, err
	}
	if cfg.Net == "tcp" {
		o.Host, o.Port, err = utils.SplitHostPort(cfg.Addr)
		if err != nil {
			return osc.Options{}, err
		}
	}
	o.User = cfg.User
	o.Password = cfg.Passwd
	if err := o.Validate(); err != nil {
		return osc.Options{}, fmt.Errorf("invalid tool options: %w", err)
	}
	return o, nil
}
