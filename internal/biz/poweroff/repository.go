package poweroff

import (
	"context"
	"time"

	"github.com/samber/mo"
)

// Filter 断电任务查询条件
type Filter struct {
	BookingID mo.Option[uint64]
	RoomID    mo.Option[uint64]
}

// AuditFilter 审计日志查询条件
type AuditFilter struct {
	BookingID mo.Option[uint64]
	RoomID    mo.Option[uint64]
	Limit     int
}

// Repo 断电任务仓储
type Repo interface {
	// Upsert 以 (booking_id, room_id) 为键写入 scheduled 行
	// 已存在则覆盖计划时间并清空执行时间，重排不产生新行
	Upsert(ctx context.Context, bookingID, roomID uint64, scheduledTime time.Time) (*PowerOffTask, error)
	UpdateStatusByKey(ctx context.Context, bookingID, roomID uint64, status Status, executedAt *time.Time) error
	List(ctx context.Context, filter *Filter, page, size int) ([]*PowerOffTask, int64, error)
}

// AuditRepo 审计日志仓储，只有追加和查询
type AuditRepo interface {
	Append(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error)
}
