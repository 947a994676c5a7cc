package errors

import (
	"sync"

	"go.uber.org/zap"
)

// TaskGroup runs fire-and-forget background tasks. Each task is wrapped to
// recover panics and log them, so an independent failure never propagates
// to the caller that spawned it.
type TaskGroup struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewTaskGroup creates a task group that logs task failures to the given logger
func NewTaskGroup(logger *zap.Logger) *TaskGroup {
	return &TaskGroup{logger: logger}
}

// Go spawns fn on a new goroutine. Errors and panics are logged, never returned.
func (g *TaskGroup) Go(name string, fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("background task panicked",
					zap.String("task", name),
					zap.Any("panic", r))
			}
		}()
		if err := fn(); err != nil {
			g.logger.Warn("background task failed",
				zap.String("task", name),
				zap.Error(err))
		}
	}()
}

// Wait blocks until all spawned tasks have finished
func (g *TaskGroup) Wait() {
	g.wg.Wait()
}
