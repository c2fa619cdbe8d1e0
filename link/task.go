package link

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/venlet/go-armlink/logger"
)

// taskFunc represents one iteration of a managed task loop. It returns true
// to continue running the task, or false to stop the goroutine.
type taskFunc func() bool

// taskManager manages the lifecycle of the link's background goroutines.
//
// When its context is canceled all running goroutines are signaled to stop;
// wait blocks until they have terminated. Task bodies run with panic
// protection so a handler bug cannot take the process down.
type taskManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
}

func newTaskManager(ctx context.Context, l logger.Logger) *taskManager {
	mgr := &taskManager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// context returns the manager's cancellation context for task bodies that
// block on channels.
func (mgr *taskManager) context() context.Context {
	return mgr.ctx
}

// start starts a new goroutine with the given name and task function.
//
// The taskFunc should return true to continue running, or false to stop the
// goroutine. cancelFunc, when non-nil, runs after the loop exits for any
// reason, including panic or context cancellation.
func (mgr *taskManager) start(name string, fn taskFunc, cancelFunc func()) {
	mgr.logger.Debug("start task", "name", name)

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				mgr.logger.Error("panic in task", "name", name, "panic", r)
			}

			if cancelFunc != nil {
				cancelFunc()
			}

			mgr.count.Add(-1)
			mgr.logger.Debug(fmt.Sprintf("%s task terminated", name), "task_count", mgr.taskCount())
			mgr.wg.Done()
		}()

		for {
			select {
			case <-mgr.ctx.Done():
				return
			default:
				if !fn() {
					return
				}
			}
		}
	}()
}

// stop signals all running goroutines.
func (mgr *taskManager) stop() {
	mgr.cancel()
}

// wait waits for all goroutines to terminate.
func (mgr *taskManager) wait() {
	mgr.wg.Wait()
}

// taskCount returns the number of currently running goroutines.
func (mgr *taskManager) taskCount() int {
	return int(mgr.count.Load())
}
