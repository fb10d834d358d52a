package notification

import (
	"context"
	"time"
)

// Repo 通知仓储
type Repo interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uint64) (*Notification, error)
	Update(ctx context.Context, id uint64, patch *Patch) error
	// FindSendable 取一批待投递通知：pending/retry 且重试次数未用尽，按创建时间先进先出
	FindSendable(ctx context.Context, limit int) ([]*Notification, error)
	FindByBooking(ctx context.Context, bookingID uint64) ([]*Notification, error)
	FindByUser(ctx context.Context, userID uint64, limit int) ([]*Notification, error)
	// RetryFailed 把重试次数未用尽的 failed 行批量改回 retry，返回影响行数
	RetryFailed(ctx context.Context) (int64, error)
	// SoftDeleteOlderThan 软删除创建时间早于 before 的行，返回影响行数
	SoftDeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
