package check

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

func init() {
	registerCheck("tool", toolCheck, ScopePreRun)
}

func toolCheck(_ context.Context, r Resources, logger *slog.Logger) error {
	path, err := exec.LookPath(r.Binary)
	if err != nil {
		return fmt.Errorf("cannot find %s, install percona-toolkit or pass --osc-binary: %w", r.Binary, err)
	}
	logger.Info("using schema change tool", "path", path)
	return nil
}
