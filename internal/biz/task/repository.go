package task

import (
	"context"
	"time"

	"github.com/samber/mo"
)

// Filter 任务查询条件
type Filter struct {
	Type   mo.Option[Type]
	Status mo.Option[Status]
	Ref    mo.Option[Ref]
}

// Repo 计划任务仓储
type Repo interface {
	Create(ctx context.Context, t *ScheduledTask) error
	GetByID(ctx context.Context, id uint64) (*ScheduledTask, error)
	// GetActiveByTaskID 按业务标识取未删除的待执行任务
	GetActiveByTaskID(ctx context.Context, taskID string) (*ScheduledTask, error)
	Update(ctx context.Context, id uint64, patch *Patch) error
	List(ctx context.Context, filter *Filter) ([]*ScheduledTask, error)
	FindByRef(ctx context.Context, ref Ref) ([]*ScheduledTask, error)
	// FindRecoverable 重启恢复时加载 pending/failed 的未删除任务
	FindRecoverable(ctx context.Context) ([]*ScheduledTask, error)
	// MarkRunning 以 pending -> running 的条件更新抢占任务，返回是否抢到
	MarkRunning(ctx context.Context, id uint64, executedTime time.Time) (bool, error)
	// CancelPending 以 pending -> cancelled 的条件更新取消任务，返回是否取消到
	CancelPending(ctx context.Context, taskID string) (bool, error)
	// FailPending 以 pending -> failed 的条件更新标记任务，返回是否命中
	FailPending(ctx context.Context, id uint64, message string) (bool, error)
	// RequeueFailed 以 failed -> pending 的条件更新重排任务并累加重试计数
	RequeueFailed(ctx context.Context, id uint64) (bool, error)
}
