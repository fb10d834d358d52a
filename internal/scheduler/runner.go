package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/pkg/config"
	"go.uber.org/zap"
)

// Runner 任务执行池
// worker 通过 pending -> running 的条件更新抢占任务，抢不到说明
// 已被取消或被其他实例接手，直接放弃
type Runner struct {
	logger   *zap.Logger
	taskRepo task.Repo

	maxWorkers int
	taskCh     chan uint64
	stopCh     chan struct{}
	wg         sync.WaitGroup

	executorMu sync.RWMutex
	executors  map[task.Type]Executor
}

// NewRunner 创建任务执行池
func NewRunner(cfg *config.Config, logger *zap.Logger, taskRepo task.Repo) *Runner {
	maxWorkers := cfg.Scheduler.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Runner{
		logger:     logger,
		taskRepo:   taskRepo,
		maxWorkers: maxWorkers,
		taskCh:     make(chan uint64, maxWorkers*2),
		stopCh:     make(chan struct{}),
		executors:  make(map[task.Type]Executor),
	}
}

// Register 注册任务类型对应的执行器
func (r *Runner) Register(typ task.Type, exec Executor) {
	r.executorMu.Lock()
	defer r.executorMu.Unlock()
	r.executors[typ] = exec
}

// Start 启动执行池
func (r *Runner) Start() {
	for i := 0; i < r.maxWorkers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Info("task runner started",
		zap.Int("workers", r.maxWorkers))
}

// Stop 停止执行池
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

// Submit 把任务行投递到执行池
// 队列满时标记失败而不是阻塞定时器回调
func (r *Runner) Submit(rowID uint64) {
	select {
	case r.taskCh <- rowID:
		r.logger.Debug("task submitted", zap.Uint64("id", rowID))
	default:
		r.logger.Warn("task queue is full, dropping task",
			zap.Uint64("id", rowID))

		ctx := context.Background()
		if _, err := r.taskRepo.FailPending(ctx, rowID, "task queue is full"); err != nil {
			r.logger.Error("failed to mark dropped task",
				zap.Uint64("id", rowID),
				zap.Error(err))
		}
	}
}

// worker 工作协程
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("worker started", zap.Int("worker_id", id))

	for {
		select {
		case rowID := <-r.taskCh:
			r.execute(rowID)
		case <-r.stopCh:
			r.logger.Debug("worker stopped", zap.Int("worker_id", id))
			return
		}
	}
}

// execute 抢占并执行任务
func (r *Runner) execute(rowID uint64) {
	ctx := context.Background()

	claimed, err := r.taskRepo.MarkRunning(ctx, rowID, time.Now())
	if err != nil {
		r.logger.Error("failed to claim task",
			zap.Uint64("id", rowID),
			zap.Error(err))
		return
	}
	if !claimed {
		r.logger.Debug("task no longer pending, skipped",
			zap.Uint64("id", rowID))
		return
	}

	t, err := r.taskRepo.GetByID(ctx, rowID)
	if err != nil || t == nil {
		r.logger.Error("failed to load claimed task",
			zap.Uint64("id", rowID),
			zap.Error(err))
		return
	}

	r.logger.Info("executing task",
		zap.String("task_id", t.TaskID),
		zap.String("type", string(t.Type)))

	result, err := r.runExecutor(ctx, t)
	if err != nil {
		if uerr := r.taskRepo.Update(ctx, t.ID, t.Fail(err.Error())); uerr != nil {
			r.logger.Error("failed to mark task failed",
				zap.String("task_id", t.TaskID),
				zap.Error(uerr))
		}
		r.logger.Error("task execution failed",
			zap.String("task_id", t.TaskID),
			zap.Error(err))
		return
	}

	if uerr := r.taskRepo.Update(ctx, t.ID, t.Complete(result)); uerr != nil {
		r.logger.Error("failed to mark task completed",
			zap.String("task_id", t.TaskID),
			zap.Error(uerr))
	}
	r.logger.Info("task completed",
		zap.String("task_id", t.TaskID),
		zap.String("result", result))
}

// runExecutor 调用注册的执行器，panic 一律转成失败避免拖垮 worker
func (r *Runner) runExecutor(ctx context.Context, t *task.ScheduledTask) (result string, err error) {
	r.executorMu.RLock()
	exec, ok := r.executors[t.Type]
	r.executorMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTaskType, t.Type)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("executor panic: %v", rec)
			r.logger.Error("executor panicked",
				zap.String("task_id", t.TaskID),
				zap.Any("panic", rec))
		}
	}()

	return exec.Execute(ctx, t)
}
