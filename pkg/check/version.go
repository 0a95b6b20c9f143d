package check

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-semver/semver"
)

func init() {
	registerCheck("version", versionCheck, ScopePreRun)
}

// utf8mb4 first shipped in MySQL 5.5.3.
var minVersion = semver.Version{Major: 5, Minor: 5, Patch: 3}

func versionCheck(ctx context.Context, r Resources, logger *slog.Logger) error {
	var version string
	if err := r.DB.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return err
	}
	v, err := parseVersion(version)
	if err != nil {
		return err
	}
	if v.LessThan(minVersion) {
		return fmt.Errorf("MySQL %s does not support utf8mb4, %s or later is required", version, minVersion)
	}
	logger.Info("server version", "version", version)
	return nil
}

// parseVersion reads strings such as "8.0.36-log" or
// "5.7.44-0ubuntu0.18.04.1", ignoring everything after the patch number.
func parseVersion(s string) (*semver.Version, error) {
	base, _, _ := strings.Cut(strings.TrimSpace(s), "-")
	v, err := semver.NewVersion(base)
	if err != nil {
		return nil, fmt.Errorf("unrecognized server version %q: %w", s, err)
	}
	return v, nil
}
