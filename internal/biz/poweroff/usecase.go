package poweroff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/room"
	"github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/internal/scheduler"
	"github.com/booking/scheduler/pkg/config"
	"github.com/google/wire"
	"github.com/spf13/cast"
	idgen "github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"
)

var Provider = wire.NewSet(NewUsecase)

// RelayController 继电器控制能力，具体传输由外部注入
type RelayController interface {
	PowerOff(ctx context.Context, controllerID string, port int) error
}

type Usecase struct {
	repo       Repo
	auditRepo  AuditRepo
	bookings   booking.Repo
	rooms      room.Repo
	relay      RelayController
	sched      *scheduler.Scheduler
	maxRetries int
	retryDelay time.Duration
	buffer     time.Duration
	logger     *zap.Logger
}

func NewUsecase(
	repo Repo,
	auditRepo AuditRepo,
	bookings booking.Repo,
	rooms room.Repo,
	relay RelayController,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	logger *zap.Logger,
) *Usecase {
	return &Usecase{
		repo:       repo,
		auditRepo:  auditRepo,
		bookings:   bookings,
		rooms:      rooms,
		relay:      relay,
		sched:      sched,
		maxRetries: cfg.Relay.MaxRetries,
		retryDelay: cfg.Relay.RetryDelay,
		buffer:     cfg.Relay.PowerOffBuffer,
		logger:     logger,
	}
}

// PowerOffTimeFor 预订结束后延迟断电的时间点
func (u *Usecase) PowerOffTimeFor(b *booking.Booking) time.Time {
	return b.EndAt().Add(u.buffer)
}

// SchedulePowerOff 安排断电任务
// 同一 (booking_id, room_id) 重复安排时覆盖旧任务，以最后一次的时间为准
func (u *Usecase) SchedulePowerOff(ctx context.Context, bookingID, roomID uint64, when time.Time) (string, error) {
	if _, err := u.repo.Upsert(ctx, bookingID, roomID, when); err != nil {
		return "", fmt.Errorf("failed to upsert power off task: %w", err)
	}

	t, err := u.sched.Schedule(ctx, scheduler.Spec{
		Type:  task.TypePowerOff,
		Ref:   task.BookingRef(bookingID),
		Title: fmt.Sprintf("自动断电 - 预订%d", bookingID),
		Description: fmt.Sprintf("预订 %d 结束后自动断电房间 %d，计划时间: %s",
			bookingID, roomID, when.Format("2006-01-02 15:04:05")),
		RunAt: when,
		Payload: map[string]any{
			"booking_id": bookingID,
			"room_id":    roomID,
		},
		MaxRetries: u.maxRetries,
	})
	if err != nil {
		return "", err
	}

	u.logger.Info("power off scheduled",
		zap.Uint64("booking_id", bookingID),
		zap.Uint64("room_id", roomID),
		zap.Time("scheduled_time", when))
	return t.TaskID, nil
}

// CancelPowerOff 取消断电任务
// 从未安排过或已执行的键返回 false，不算错误
func (u *Usecase) CancelPowerOff(ctx context.Context, bookingID, roomID uint64) (bool, error) {
	ok, err := u.sched.Cancel(ctx, task.PowerOffTaskID(bookingID, roomID))
	if err != nil || !ok {
		return false, err
	}
	if err := u.repo.UpdateStatusByKey(ctx, bookingID, roomID, StatusCancelled, nil); err != nil {
		return true, fmt.Errorf("failed to mark power off task cancelled: %w", err)
	}
	u.logger.Info("power off cancelled",
		zap.Uint64("booking_id", bookingID),
		zap.Uint64("room_id", roomID))
	return true, nil
}

// Execute 断电任务回调
// 预订已取消时跳过且不接触继电器；房间缺失是硬失败不重试；
// 传输失败同步重试，每次尝试落一条审计日志
func (u *Usecase) Execute(ctx context.Context, t *task.ScheduledTask) (string, error) {
	if t.Ref.Kind != task.RefBooking {
		return "", fmt.Errorf("unexpected task ref: %s", t.Ref)
	}
	bookingID := t.Ref.ID
	roomID := cast.ToUint64(t.Payload["room_id"])
	if roomID == 0 {
		return "", errors.New("power off payload missing room_id")
	}

	b, err := u.bookings.GetByID(ctx, bookingID)
	if err != nil {
		u.audit(ctx, bookingID, roomID, ResultError, fmt.Sprintf("Exception: %v", err))
		return "", err
	}
	if b == nil {
		u.audit(ctx, bookingID, roomID, ResultError, "booking not found")
		u.markTask(ctx, bookingID, roomID, StatusFailed, nil)
		return "", errors.New("booking not found")
	}
	if b.Status == booking.StatusCancelled {
		u.markTask(ctx, bookingID, roomID, StatusCancelled, nil)
		u.logger.Info("booking cancelled, power off skipped",
			zap.Uint64("booking_id", bookingID),
			zap.Uint64("room_id", roomID))
		return "skipped: booking cancelled", nil
	}

	r, err := u.rooms.GetByID(ctx, roomID)
	if err != nil {
		u.audit(ctx, bookingID, roomID, ResultError, fmt.Sprintf("Exception: %v", err))
		return "", err
	}
	if r == nil {
		u.audit(ctx, bookingID, roomID, ResultError, "room not found")
		u.markTask(ctx, bookingID, roomID, StatusFailed, nil)
		return "", errors.New("room not found")
	}
	if !r.HasRelay() {
		u.audit(ctx, bookingID, roomID, ResultError, "room has no relay configured")
		u.markTask(ctx, bookingID, roomID, StatusFailed, nil)
		return "", errors.New("room has no relay configured")
	}

	var lastErr error
	for attempt := 1; attempt <= u.maxRetries; attempt++ {
		err := u.relay.PowerOff(ctx, r.RelayControllerID, r.RelayPort)
		if err == nil {
			now := time.Now()
			u.audit(ctx, bookingID, roomID, ResultSuccess,
				fmt.Sprintf("Automatic power-off completed (attempt %d/%d)", attempt, u.maxRetries))
			u.markTask(ctx, bookingID, roomID, StatusCompleted, &now)
			u.logger.Info("room powered off",
				zap.Uint64("booking_id", bookingID),
				zap.Uint64("room_id", roomID),
				zap.Int("attempt", attempt))
			return "power off completed", nil
		}

		lastErr = err
		u.audit(ctx, bookingID, roomID, ResultFailed,
			fmt.Sprintf("Relay control failed (attempt %d/%d): %v", attempt, u.maxRetries, err))
		u.logger.Warn("relay control attempt failed",
			zap.Uint64("room_id", roomID),
			zap.String("controller_id", r.RelayControllerID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < u.maxRetries {
			select {
			case <-time.After(u.retryDelay):
			case <-ctx.Done():
				u.markTask(ctx, bookingID, roomID, StatusFailed, nil)
				return "", ctx.Err()
			}
		}
	}

	u.markTask(ctx, bookingID, roomID, StatusFailed, nil)
	return "", fmt.Errorf("relay control failed after %d attempts: %w", u.maxRetries, lastErr)
}

// GetPowerOffTasks 分页查询断电任务
func (u *Usecase) GetPowerOffTasks(ctx context.Context, filter *Filter, page, size int) ([]*PowerOffTask, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return u.repo.List(ctx, filter, page, size)
}

// GetAuditLog 查询审计日志，默认 100 条，上限 1000
func (u *Usecase) GetAuditLog(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return u.auditRepo.List(ctx, filter)
}

// markTask 更新任务行状态，失败只记日志不中断执行流程
func (u *Usecase) markTask(ctx context.Context, bookingID, roomID uint64, status Status, executedAt *time.Time) {
	if err := u.repo.UpdateStatusByKey(ctx, bookingID, roomID, status, executedAt); err != nil {
		u.logger.Error("failed to update power off task status",
			zap.Uint64("booking_id", bookingID),
			zap.Uint64("room_id", roomID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// audit 追加审计日志，失败只记日志
func (u *Usecase) audit(ctx context.Context, bookingID, roomID uint64, result AuditResult, details string) {
	entry := &AuditEntry{
		ID:            uint64(idgen.NextId()),
		BookingID:     bookingID,
		RoomID:        roomID,
		OperationType: OpAutomaticPowerOff,
		Result:        result,
		Details:       details,
	}
	if err := u.auditRepo.Append(ctx, entry); err != nil {
		u.logger.Error("failed to append power off audit log",
			zap.Uint64("booking_id", bookingID),
			zap.Uint64("room_id", roomID),
			zap.Error(err))
	}
}
