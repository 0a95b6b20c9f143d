package dbconn

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/block/mb4convert/pkg/utils"
	"github.com/go-sql-driver/mysql"
)

const (
	customTLSConfigName = "mb4convert_custom"
	maxConnLifetime     = time.Minute * 3
)

// NewCustomTLSConfig creates a TLS config based on SSL mode and certificate data
func NewCustomTLSConfig(certData []byte, sslMode string) *tls.Config {
	caCertPool := x509.NewCertPool()
	caCertPool.AppendCertsFromPEM(certData)

	switch sslMode {
	case "VERIFY_CA":
		// Verify certificate against CA, but allow hostname mismatches
		return &tls.Config{
			RootCAs:            caCertPool,
			InsecureSkipVerify: true, // Skip all default verification
			VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
				if len(rawCerts) == 0 {
					return errors.New("no certificates provided")
				}
				var certs []*x509.Certificate
				for _, rawCert := range rawCerts {
					cert, err := x509.ParseCertificate(rawCert)
					if err != nil {
						return fmt.Errorf("failed to parse certificate: %w", err)
					}
					certs = append(certs, cert)
				}
				intermediates := x509.NewCertPool()
				for _, cert := range certs[1:] {
					intermediates.AddCert(cert)
				}
				// No DNSName, so the hostname is not checked.
				opts := x509.VerifyOptions{
					Roots:         caCertPool,
					Intermediates: intermediates,
				}
				if _, err := certs[0].Verify(opts); err != nil {
					return fmt.Errorf("certificate verification failed: %w", err)
				}
				return nil
			},
		}
	case "VERIFY_IDENTITY":
		return &tls.Config{
			RootCAs: caCertPool,
		}
	default:
		// PREFERRED and REQUIRED: encryption only
		return &tls.Config{
			RootCAs:            caCertPool,
			InsecureSkipVerify: true,
		}
	}
}

// tlsParam returns the value of the driver's tls= parameter for config.
func tlsParam(config *DBConfig) (string, error) {
	mode := strings.ToUpper(config.TLSMode)
	if config.TLSCertificatePath != "" && mode != "DISABLED" {
		certData, err := os.ReadFile(config.TLSCertificatePath)
		if err != nil {
			return "", fmt.Errorf("failed to read TLS certificate: %w", err)
		}
		name := customTLSConfigName + "_" + strings.ToLower(mode)
		if err := mysql.RegisterTLSConfig(name, NewCustomTLSConfig(certData, mode)); err != nil {
			return "", err
		}
		return name, nil
	}
	switch mode {
	case "DISABLED":
		return "false", nil
	case "PREFERRED", "":
		return "preferred", nil
	case "REQUIRED", "VERIFY_CA":
		// VERIFY_CA without a CA file can only check that TLS is in use.
		return "skip-verify", nil
	case "VERIFY_IDENTITY":
		return "true", nil
	default:
		return "", fmt.Errorf("unknown TLS mode %q", config.TLSMode)
	}
}

// NewDSN formats a DSN from connection flags.
func NewDSN(host, user, password, database string) (string, error) {
	h, port, err := utils.SplitHostPort(host)
	if err != nil {
		return "", err
	}
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(h, strconv.Itoa(port))
	cfg.DBName = database
	return cfg.FormatDSN(), nil
}

// newDSN returns a new DSN to be used to connect to MySQL.
// It accepts a DSN as input and appends TLS configuration
// and session settings.
func newDSN(dsn string, config *DBConfig) (string, error) {
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return "", err
	}
	tlsValue, err := tlsParam(config)
	if err != nil {
		return "", err
	}
	var ops []string
	ops = append(ops, fmt.Sprintf("%s=%s", "tls", url.QueryEscape(tlsValue)))
	// ANSI_QUOTES would turn the double-quoted DEFAULT literals into identifiers.
	ops = append(ops, fmt.Sprintf("%s=%s", "sql_mode", url.QueryEscape(`"NO_ENGINE_SUBSTITUTION"`)))
	ops = append(ops, fmt.Sprintf("%s=%s", "lock_wait_timeout", url.QueryEscape(strconv.Itoa(config.LockWaitTimeout))))
	ops = append(ops, fmt.Sprintf("%s=%s", "charset", "utf8mb4"))
	ops = append(ops, fmt.Sprintf("%s=%s", "collation", "utf8mb4_bin"))
	// So that we recycle the connection if we inadvertently connect to an old primary which is now a read only replica.
	ops = append(ops, fmt.Sprintf("%s=%s", "rejectReadOnly", "true"))
	ops = append(ops, fmt.Sprintf("%s=%t", "interpolateParams", config.InterpolateParams))
	ops = append(ops, fmt.Sprintf("%s=%s", "allowNativePasswords", "true"))

	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s%s", dsn, separator, strings.Join(ops, "&")), nil
}

// New is similar to sql.Open except we take the inputDSN and
// append additional options to it to standardize the connection.
// It will also ping the connection to ensure it is valid.
func New(inputDSN string, config *DBConfig) (*sql.DB, error) {
	dsn, err := newDSN(inputDSN, config)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		utils.CloseAndLog(db)
		return nil, err
	}
	db.SetMaxOpenConns(config.MaxOpenConnections)
	db.SetConnMaxLifetime(maxConnLifetime)
	return db, nil
}
