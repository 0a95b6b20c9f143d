package convert

import "github.com/go-ini/ini"

const (
	defaultHost     = "127.0.0.1"
	defaultPort     = 3306
	defaultUsername = "root"
	defaultPassword = ""
	defaultTLSMode  = "PREFERRED"
)

// confParams holds the [client] section of a MySQL option file. Getters
// provide defaults when the receiver is nil or a key is not set.
type confParams struct {
	host, database, user, tlsMode, tlsCA string
	password                             *string
	port                                 int
}

func (c *confParams) GetHost() string {
	if c == nil || c.host == "" {
		return defaultHost
	}
	return c.host
}

// N.B. There is no default database; it must come from a flag or the file.
func (c *confParams) GetDatabase() string {
	if c == nil {
		return ""
	}
	return c.database
}

func (c *confParams) GetUser() string {
	if c == nil || c.user == "" {
		return defaultUsername
	}
	return c.user
}

func (c *confParams) GetPassword() string {
	if c == nil || c.password == nil {
		return defaultPassword
	}
	return *c.password
}

func (c *confParams) GetTLSMode() string {
	if c == nil || c.tlsMode == "" {
		return defaultTLSMode
	}
	return c.tlsMode
}

func (c *confParams) GetTLSCA() string {
	if c == nil {
		return ""
	}
	return c.tlsCA
}

func (c *confParams) GetPort() int {
	if c == nil || c.port == 0 {
		return defaultPort
	}
	return c.port
}

// newConfParams loads the [client] section of the ini file at confFilePath.
// An empty path returns empty params.
func newConfParams(confFilePath string) (*confParams, error) {
	params := &confParams{}
	if confFilePath == "" {
		return params, nil
	}
	creds, err := ini.Load(confFilePath)
	if err != nil {
		return nil, err
	}
	if creds.HasSection("client") {
		clientSection := creds.Section("client")
		params.host = clientSection.Key("host").String()
		params.database = clientSection.Key("database").String()
		params.user = clientSection.Key("user").String()
		params.tlsMode = clientSection.Key("tls-mode").String()
		params.tlsCA = clientSection.Key("tls-ca").String()
		params.port = clientSection.Key("port").MustInt()
		if clientSection.HasKey("password") {
			pw := clientSection.Key("password").String()
			params.password = &pw
		}
	}
	return params, nil
}
