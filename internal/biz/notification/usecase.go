package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/room"
	"github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/internal/biz/user"
	"github.com/booking/scheduler/internal/scheduler"
	"github.com/booking/scheduler/pkg/config"
	"github.com/google/wire"
	idgen "github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"
)

var Provider = wire.NewSet(NewUsecase)

type Usecase struct {
	repo          Repo
	bookings      booking.Repo
	rooms         room.Repo
	users         user.Repo
	sender        Sender
	sched         *scheduler.Scheduler
	batchSize     int
	maxRetries    int
	retentionDays int
	logger        *zap.Logger
}

func NewUsecase(
	repo Repo,
	bookings booking.Repo,
	rooms room.Repo,
	users user.Repo,
	sender Sender,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	logger *zap.Logger,
) *Usecase {
	return &Usecase{
		repo:          repo,
		bookings:      bookings,
		rooms:         rooms,
		users:         users,
		sender:        sender,
		sched:         sched,
		batchSize:     cfg.Notification.BatchSize,
		maxRetries:    cfg.Notification.MaxRetries,
		retentionDays: cfg.Notification.RetentionDays,
		logger:        logger,
	}
}

// CreateNotification 创建一条待投递通知
func (u *Usecase) CreateNotification(ctx context.Context, bookingID, userID uint64, typ Type, title, content string) (*Notification, error) {
	n := &Notification{
		ID:         uint64(idgen.NextId()),
		BookingID:  bookingID,
		UserID:     userID,
		Type:       typ,
		Title:      title,
		Content:    content,
		Status:     StatusPending,
		MaxRetries: u.maxRetries,
	}
	if err := u.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

// Send 投递单条通知
// 投递失败记录在行上并返回 false，不作为 error 返回；error 只表示仓储故障
func (u *Usecase) Send(ctx context.Context, id uint64) (bool, error) {
	n, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if n == nil || n.IsDeleted {
		return false, nil
	}

	target, err := u.users.GetByID(ctx, n.UserID)
	if err != nil {
		return false, err
	}
	if target == nil {
		return false, u.markFailure(ctx, n, "user not found")
	}

	if err := u.sender.Deliver(ctx, target.OpenID, n.Title, n.Content); err != nil {
		u.logger.Warn("notification delivery failed",
			zap.Uint64("notification_id", n.ID),
			zap.Uint64("user_id", n.UserID),
			zap.Error(err))
		return false, u.markFailure(ctx, n, err.Error())
	}

	patch := NewPatch().WithStatus(StatusSent).WithSendTime(time.Now())
	if err := u.repo.Update(ctx, n.ID, patch); err != nil {
		return false, err
	}
	u.logger.Info("notification sent",
		zap.Uint64("notification_id", n.ID),
		zap.Uint64("user_id", n.UserID),
		zap.String("type", string(n.Type)))
	return true, nil
}

// markFailure 累加重试计数，未用尽转 retry，用尽转 failed
func (u *Usecase) markFailure(ctx context.Context, n *Notification, message string) error {
	count := n.RetryCount + 1
	status := StatusRetry
	if count >= n.MaxRetries {
		status = StatusFailed
	}
	patch := NewPatch().WithStatus(status).WithRetryCount(count).WithErrorMessage(message)
	return u.repo.Update(ctx, n.ID, patch)
}

// ProcessPending 投递一批待发通知，每分钟由调度器触发
func (u *Usecase) ProcessPending(ctx context.Context) (int, error) {
	list, err := u.repo.FindSendable(ctx, u.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load sendable notifications: %w", err)
	}
	if len(list) == 0 {
		return 0, nil
	}

	sent := 0
	for _, n := range list {
		ok, err := u.Send(ctx, n.ID)
		if err != nil {
			u.logger.Error("failed to process notification",
				zap.Uint64("notification_id", n.ID),
				zap.Error(err))
			continue
		}
		if ok {
			sent++
		}
	}
	u.logger.Info("notification batch processed",
		zap.Int("total", len(list)),
		zap.Int("sent", sent))
	return len(list), nil
}

// RetryFailed 把重试次数未用尽的失败通知重新排队
func (u *Usecase) RetryFailed(ctx context.Context) (int, error) {
	affected, err := u.repo.RetryFailed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to retry notifications: %w", err)
	}
	if affected > 0 {
		u.logger.Info("failed notifications requeued", zap.Int64("count", affected))
	}
	return int(affected), nil
}

// CleanupOld 软删除超过保留期的通知，days 不合法时取配置默认值
func (u *Usecase) CleanupOld(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = u.retentionDays
	}
	before := time.Now().AddDate(0, 0, -days)
	affected, err := u.repo.SoftDeleteOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup notifications: %w", err)
	}
	if affected > 0 {
		u.logger.Info("old notifications cleaned up",
			zap.Int("days", days),
			zap.Int64("count", affected))
	}
	return int(affected), nil
}

// GetByBooking 查询预订下的通知
func (u *Usecase) GetByBooking(ctx context.Context, bookingID uint64) ([]*Notification, error) {
	return u.repo.FindByBooking(ctx, bookingID)
}

// GetByUser 查询用户的通知
func (u *Usecase) GetByUser(ctx context.Context, userID uint64, limit int) ([]*Notification, error) {
	return u.repo.FindByUser(ctx, userID, limit)
}

// ScheduleBookingReminder 为预订安排到期提醒任务
func (u *Usecase) ScheduleBookingReminder(ctx context.Context, bookingID uint64, remindAt time.Time) (string, error) {
	b, err := u.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if b == nil {
		return "", booking.ErrNotFound
	}

	t, err := u.sched.Schedule(ctx, scheduler.Spec{
		Type:  task.TypeBookingReminder,
		Ref:   task.BookingRef(bookingID),
		Title: "预订提醒 - " + u.roomName(ctx, b.RoomID),
		Description: fmt.Sprintf("为预订 %d 安排提醒，提醒时间: %s",
			bookingID, remindAt.Format("2006-01-02 15:04:05")),
		RunAt: remindAt,
		Payload: map[string]any{
			"booking_id": bookingID,
			"room_id":    b.RoomID,
		},
		MaxRetries: u.maxRetries,
	})
	if err != nil {
		return "", err
	}
	return t.TaskID, nil
}

// Execute 预订提醒任务回调，预订已结束时跳过视为成功
func (u *Usecase) Execute(ctx context.Context, t *task.ScheduledTask) (string, error) {
	if t.Ref.Kind != task.RefBooking {
		return "", fmt.Errorf("unexpected task ref: %s", t.Ref)
	}

	b, err := u.bookings.GetByID(ctx, t.Ref.ID)
	if err != nil {
		return "", err
	}
	if b == nil {
		return "", booking.ErrNotFound
	}
	if b.Ended() {
		u.logger.Info("booking ended, reminder skipped",
			zap.Uint64("booking_id", b.ID),
			zap.String("status", string(b.Status)))
		return "skipped: booking ended", nil
	}

	content := fmt.Sprintf("您预订的%s将在1小时后到期，请及时到店使用。预订时间：%s - %s。",
		u.roomName(ctx, b.RoomID),
		time.Unix(b.StartTime, 0).Format("2006-01-02 15:04"),
		time.Unix(b.EndTime, 0).Format("15:04"))

	n, err := u.CreateNotification(ctx, b.ID, b.UserID, TypeBookingReminder, "预订即将到期提醒", content)
	if err != nil {
		return "", err
	}

	ok, err := u.Send(ctx, n.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("reminder delivery failed")
	}
	return "reminder sent", nil
}

func (u *Usecase) roomName(ctx context.Context, roomID uint64) string {
	r, err := u.rooms.GetByID(ctx, roomID)
	if err != nil || r == nil {
		return fmt.Sprintf("房间%d", roomID)
	}
	return r.Name
}
