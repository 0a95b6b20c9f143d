// Package status tracks the state of a conversion run and periodically
// reports it.
package status

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var StatusInterval = 30 * time.Second

type Task interface {
	Progress() Progress
	Status() string
}

// WatchTask logs the task's status every StatusInterval until ctx is
// done, the task reaches a terminal state, or the returned stop function
// is called. stop waits for the reporting goroutine to exit.
func WatchTask(ctx context.Context, task Task, logger *slog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Go(func() {
		continuallyDumpStatus(ctx, task, logger)
	})
	return func() {
		cancel()
		wg.Wait()
	}
}

func continuallyDumpStatus(ctx context.Context, task Task, logger *slog.Logger) {
	ticker := time.NewTicker(StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if task.Progress().CurrentState.Done() {
				return
			}
			logger.Info(task.Status())
		}
	}
}
