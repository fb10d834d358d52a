package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
	"github.com/booking/scheduler/pkg/config"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
	"github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"
)

// Spec 任务编排请求
type Spec struct {
	Type        task.Type
	Ref         task.Ref
	Title       string
	Description string
	RunAt       time.Time
	Payload     map[string]any
	MaxRetries  int
}

// JobInfo 已编排定时器信息
type JobInfo struct {
	TaskID string    `json:"task_id"`
	RunAt  time.Time `json:"run_at"`
}

type taskTimer struct {
	rowID uint64
	runAt time.Time
	timer *time.Timer
}

// Scheduler 任务调度器
// 任务行先持久化再编排定时器，行状态的条件更新是唯一的执行互斥点
type Scheduler struct {
	config        config.SchedulerConfig
	locker        *Locker // nil 表示单实例部署，跳过选主
	cron          *cron.Cron
	healthChecker *HealthChecker
	logger        *zap.Logger

	instanceID string
	isLeader   atomic.Bool
	stopCh     chan struct{}
	wg         sync.WaitGroup

	runner *Runner
	events *EventBus

	timerMu sync.Mutex
	timers  map[string]*taskTimer // 以 task_id 为键

	taskRepo task.Repo
}

// New 创建调度器
func New(
	cfg *config.Config,
	db commonrepo.DB,
	logger *zap.Logger,

	runner *Runner,
	checker *HealthChecker,

	taskRepo task.Repo,
) (*Scheduler, error) {
	s := &Scheduler{
		config:        cfg.Scheduler,
		logger:        logger,
		instanceID:    cfg.Scheduler.InstanceID,
		stopCh:        make(chan struct{}),
		cron:          cron.New(cron.WithSeconds()),
		timers:        make(map[string]*taskTimer),
		runner:        runner,
		healthChecker: checker,
		taskRepo:      taskRepo,
	}

	if cfg.Scheduler.Cluster {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		s.locker = NewLocker(sqlDB, cfg.Scheduler.LockKey, cfg.Scheduler.LockTimeout, logger)
	}

	return s, nil
}

// SetEventBus 注入事件总线，必须在 Start 之前调用
func (s *Scheduler) SetEventBus(bus *EventBus) {
	s.events = bus
}

// RegisterExecutor 注册任务类型对应的执行器
func (s *Scheduler) RegisterExecutor(typ task.Type, exec Executor) {
	s.runner.Register(typ, exec)
}

// AddCronJob 注册周期作业，只在成为领导者后随 cron 一起运行
func (s *Scheduler) AddCronJob(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := fn(context.Background()); err != nil {
			s.logger.Error("cron job failed",
				zap.String("job", name),
				zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", name, err)
	}
	return nil
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("instance_id", s.instanceID))

	// 启动健康检查
	s.healthChecker.Start()

	// 启动任务执行池
	s.runner.Start()

	// 恢复重启前的任务
	if err := s.recoverTasks(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	if s.locker == nil {
		// 单实例部署，直接运行周期作业
		s.isLeader.Store(true)
		s.cron.Start()
		s.logger.Info("running in standalone mode",
			zap.String("instance_id", s.instanceID))
		return nil
	}

	// 启动领导者选举
	s.wg.Add(1)
	go s.leaderElection()

	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping scheduler",
		zap.String("instance_id", s.instanceID))

	close(s.stopCh)

	// 停止cron
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}

	// 停掉所有未触发的定时器
	s.timerMu.Lock()
	for id, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, id)
	}
	s.timerMu.Unlock()

	// 释放锁
	if s.locker != nil && s.locker.IsLocked() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Unlock(ctx); err != nil {
			s.logger.Error("failed to release lock", zap.Error(err))
		}
	}

	// 停止健康检查
	s.healthChecker.Stop()

	// 停止任务执行池
	s.runner.Stop()

	// 等待所有goroutine退出
	s.wg.Wait()

	s.logger.Info("scheduler stopped",
		zap.String("instance_id", s.instanceID))

	return nil
}

// Schedule 持久化并编排一个定时任务
// 同一幂等键重复编排时旧任务被退役替换，任何时刻最多只有一个在排
func (s *Scheduler) Schedule(ctx context.Context, spec Spec) (*task.ScheduledTask, error) {
	taskID, err := s.deriveTaskID(spec)
	if err != nil {
		return nil, err
	}

	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	existing, err := s.taskRepo.GetActiveByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task by key: %w", err)
	}
	if existing != nil {
		s.stopTimerLocked(taskID)
		patch := task.NewPatch().
			WithStatus(task.StatusCancelled).
			WithResult("replaced by reschedule").
			WithIsDeleted(true)
		if err := s.taskRepo.Update(ctx, existing.ID, patch); err != nil {
			return nil, fmt.Errorf("failed to retire replaced task: %w", err)
		}
	}

	maxRetries := spec.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	t := &task.ScheduledTask{
		ID:            uint64(idgen.NextId()),
		TaskID:        taskID,
		Type:          spec.Type,
		Ref:           spec.Ref,
		Title:         spec.Title,
		Description:   spec.Description,
		Payload:       spec.Payload,
		ScheduledTime: spec.RunAt,
		Status:        task.StatusPending,
		MaxRetries:    maxRetries,
	}

	// 先持久化后编排，进程在两步之间挂掉也能靠重启恢复
	if err := s.taskRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}
	s.armLocked(t)
	s.publishScheduled(t)

	s.logger.Info("task scheduled",
		zap.String("task_id", taskID),
		zap.String("type", string(spec.Type)),
		zap.Time("run_at", spec.RunAt))
	return t, nil
}

// Cancel 取消未触发的任务
// 键不存在、已触发或已取消都返回 false，属于预期竞态不算错误
func (s *Scheduler) Cancel(ctx context.Context, taskID string) (bool, error) {
	ok, err := s.taskRepo.CancelPending(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel task: %w", err)
	}
	if !ok {
		return false, nil
	}

	s.timerMu.Lock()
	s.stopTimerLocked(taskID)
	s.timerMu.Unlock()

	s.publishCancelled(taskID)

	s.logger.Info("task cancelled", zap.String("task_id", taskID))
	return true, nil
}

// ArmedJobs 当前实例已编排的定时器，按触发时间排序
func (s *Scheduler) ArmedJobs() []JobInfo {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	jobs := make([]JobInfo, 0, len(s.timers))
	for id, entry := range s.timers {
		jobs = append(jobs, JobInfo{TaskID: id, RunAt: entry.runAt})
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].RunAt.Before(jobs[j].RunAt)
	})
	return jobs
}

// Running 是否作为领导者运行周期作业
func (s *Scheduler) Running() bool {
	return s.isLeader.Load()
}

// GetTasksByBooking 查询预订关联的全部计划任务
func (s *Scheduler) GetTasksByBooking(ctx context.Context, bookingID uint64) ([]*task.ScheduledTask, error) {
	return s.taskRepo.FindByRef(ctx, task.BookingRef(bookingID))
}

// deriveTaskID 从类型和关联实体推导幂等键
func (s *Scheduler) deriveTaskID(spec Spec) (string, error) {
	switch spec.Type {
	case task.TypePowerOff:
		roomID := cast.ToUint64(spec.Payload["room_id"])
		if spec.Ref.Kind != task.RefBooking || roomID == 0 {
			return "", errors.New("power off task requires booking ref and room_id payload")
		}
		return task.PowerOffTaskID(spec.Ref.ID, roomID), nil
	case task.TypeBookingReminder:
		if spec.Ref.Kind != task.RefBooking {
			return "", errors.New("booking reminder task requires booking ref")
		}
		return task.ReminderTaskID(spec.Ref.ID, spec.RunAt), nil
	default:
		return "", fmt.Errorf("unknown task type: %q", spec.Type)
	}
}

// armLocked 注册触发定时器，调用方必须持有 timerMu
// 已过期的时间立即触发
func (s *Scheduler) armLocked(t *task.ScheduledTask) {
	if old, ok := s.timers[t.TaskID]; ok {
		old.timer.Stop()
	}

	delay := time.Until(t.ScheduledTime)
	if delay < 0 {
		delay = 0
	}

	taskID := t.TaskID
	rowID := t.ID
	entry := &taskTimer{rowID: rowID, runAt: t.ScheduledTime}
	entry.timer = time.AfterFunc(delay, func() {
		s.fire(taskID, rowID)
	})
	s.timers[taskID] = entry
}

// stopTimerLocked 停掉本地定时器，调用方必须持有 timerMu
func (s *Scheduler) stopTimerLocked(taskID string) {
	if entry, ok := s.timers[taskID]; ok {
		entry.timer.Stop()
		delete(s.timers, taskID)
	}
}

// fire 定时器回调，把到期任务交给执行池
func (s *Scheduler) fire(taskID string, rowID uint64) {
	s.timerMu.Lock()
	if entry, ok := s.timers[taskID]; ok && entry.rowID == rowID {
		delete(s.timers, taskID)
	}
	s.timerMu.Unlock()

	select {
	case <-s.stopCh:
		return
	default:
	}

	s.runner.Submit(rowID)
}

// armRemote 响应其他实例的编排事件，在本地也布一个定时器
// 多实例同时触发时由行状态的条件更新保证至多执行一次
func (s *Scheduler) armRemote(rowID uint64, taskID string, runAt time.Time) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.armLocked(&task.ScheduledTask{ID: rowID, TaskID: taskID, ScheduledTime: runAt})
}

// disarmRemote 响应其他实例的取消事件
func (s *Scheduler) disarmRemote(taskID string) {
	s.timerMu.Lock()
	s.stopTimerLocked(taskID)
	s.timerMu.Unlock()
}

// recoverTasks 重启恢复
// 未到期的重新编排；停机期间错过的 pending 立即补执行，不静默丢弃；
// 错过的 failed 任务涉及硬件，只告警等人工处理
func (s *Scheduler) recoverTasks() error {
	ctx := context.Background()

	tasks, err := s.taskRepo.FindRecoverable(ctx)
	if err != nil {
		return fmt.Errorf("failed to load recoverable tasks: %w", err)
	}

	now := time.Now()
	var rearmed, fired, requeued, surfaced int

	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	for _, t := range tasks {
		switch {
		case t.Status == task.StatusPending && t.ScheduledTime.After(now):
			s.armLocked(t)
			rearmed++

		case t.Status == task.StatusPending:
			s.runner.Submit(t.ID)
			fired++

		case t.Status == task.StatusFailed && t.ScheduledTime.After(now):
			if !t.Retryable() {
				s.logger.Warn("failed task exhausted retries, not requeued",
					zap.String("task_id", t.TaskID),
					zap.Int("retry_count", t.RetryCount))
				surfaced++
				continue
			}
			ok, err := s.taskRepo.RequeueFailed(ctx, t.ID)
			if err != nil {
				s.logger.Error("failed to requeue task",
					zap.String("task_id", t.TaskID),
					zap.Error(err))
				continue
			}
			if ok {
				t.Status = task.StatusPending
				t.RetryCount++
				s.armLocked(t)
				requeued++
			}

		default:
			s.logger.Warn("missed failed task requires attention",
				zap.String("task_id", t.TaskID),
				zap.String("type", string(t.Type)),
				zap.Time("scheduled_time", t.ScheduledTime))
			surfaced++
		}
	}

	s.logger.Info("task recovery finished",
		zap.Int("rearmed", rearmed),
		zap.Int("fired_immediately", fired),
		zap.Int("requeued", requeued),
		zap.Int("surfaced", surfaced))
	return nil
}

// leaderElection 领导者选举
func (s *Scheduler) leaderElection() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	s.tryBecomeLeader()

	for {
		select {
		case <-ticker.C:
			s.tryBecomeLeader()
		case <-s.stopCh:
			return
		}
	}
}

// tryBecomeLeader 尝试成为领导者，领导者负责周期作业
func (s *Scheduler) tryBecomeLeader() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.LockTimeout)
	defer cancel()

	if !s.isLeader.Load() {
		locked, err := s.locker.TryLock(ctx)
		if err != nil {
			s.logger.Error("failed to acquire leader lock", zap.Error(err))
			return
		}

		if locked {
			s.isLeader.Store(true)
			s.logger.Info("became leader",
				zap.String("instance_id", s.instanceID))

			// 启动cron调度器
			s.cron.Start()
		}
	} else {
		// 续约锁
		if err := s.locker.Renew(ctx); err != nil {
			s.logger.Error("failed to renew leader lock", zap.Error(err))
			s.isLeader.Store(false)

			// 停止cron调度器
			s.cron.Stop()
		}
	}
}

// publishScheduled 广播编排事件，事件总线缺席时为空操作
func (s *Scheduler) publishScheduled(t *task.ScheduledTask) {
	if s.events == nil {
		return
	}
	s.events.publish(context.Background(), RedisEvent{
		Type:      EventTaskScheduled,
		RowID:     t.ID,
		TaskID:    t.TaskID,
		RunAt:     t.ScheduledTime.Unix(),
		Source:    s.instanceID,
		Timestamp: time.Now().UnixMilli(),
	})
}

// publishCancelled 广播取消事件
func (s *Scheduler) publishCancelled(taskID string) {
	if s.events == nil {
		return
	}
	s.events.publish(context.Background(), RedisEvent{
		Type:      EventTaskCancelled,
		TaskID:    taskID,
		Source:    s.instanceID,
		Timestamp: time.Now().UnixMilli(),
	})
}
