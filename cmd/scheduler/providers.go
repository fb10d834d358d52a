package main

import (
	"context"
	"fmt"

	redis "github.com/go-redis/redis/v8"

	"github.com/booking/scheduler/internal/api"
	"github.com/booking/scheduler/internal/biz/notification"
	"github.com/booking/scheduler/internal/biz/poweroff"
	"github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
	"github.com/booking/scheduler/internal/orm"
	"github.com/booking/scheduler/internal/scheduler"
	"github.com/booking/scheduler/pkg/config"
)

// 周期作业的cron表达式，带秒字段
const (
	cronNotificationDispatch = "0 * * * * *" // 每分钟投递一批待发通知
	cronNotificationRetry    = "0 0 * * * *" // 每小时把可重试的失败通知拉回队列
	cronNotificationCleanup  = "0 0 2 * * *" // 每天凌晨2点清理过期通知
)

// App 服务组装结果
type App struct {
	Server    *api.Server
	Scheduler *scheduler.Scheduler
	Bus       *scheduler.EventBus
}

// NewApp 完成事件总线注入、执行器注册和周期作业挂载
func NewApp(
	server *api.Server,
	sched *scheduler.Scheduler,
	bus *scheduler.EventBus,
	notifications *notification.Usecase,
	powerOff *poweroff.Usecase,
) (*App, error) {
	sched.SetEventBus(bus)

	sched.RegisterExecutor(task.TypeBookingReminder, notifications)
	sched.RegisterExecutor(task.TypePowerOff, powerOff)

	// 周期作业只在领导者实例上运行
	if err := sched.AddCronJob(cronNotificationDispatch, "notification_dispatch", func(ctx context.Context) error {
		_, err := notifications.ProcessPending(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if err := sched.AddCronJob(cronNotificationRetry, "notification_retry_sweep", func(ctx context.Context) error {
		_, err := notifications.RetryFailed(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if err := sched.AddCronJob(cronNotificationCleanup, "notification_cleanup", func(ctx context.Context) error {
		_, err := notifications.CleanupOld(ctx, 0)
		return err
	}); err != nil {
		return nil, err
	}

	return &App{
		Server:    server,
		Scheduler: sched,
		Bus:       bus,
	}, nil
}

// ProvideRedisClient builds a redis client from typed config.
// Returns nil when redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideDB exposes the gorm handle as the repository DB seam.
func ProvideDB(storage *orm.Storage) commonrepo.DB {
	return storage.DB()
}
