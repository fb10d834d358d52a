package notification

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/room"
	"github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/internal/biz/user"
	"github.com/booking/scheduler/pkg/config"
)

func reminderTask(bookingID uint64) *task.ScheduledTask {
	return &task.ScheduledTask{
		ID:     1,
		TaskID: task.ReminderTaskID(bookingID, time.Now()),
		Type:   task.TypeBookingReminder,
		Ref:    task.BookingRef(bookingID),
		Status: task.StatusRunning,
	}
}

func TestMain(m *testing.M) {
	idgen.SetIdGenerator(idgen.NewIdGeneratorOptions(1))
	os.Exit(m.Run())
}

type fakeRepo struct {
	rows          map[uint64]*Notification
	retried       int64
	deletedBefore *time.Time
	deleted       int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[uint64]*Notification)}
}

func (r *fakeRepo) Create(ctx context.Context, n *Notification) error {
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id uint64) (*Notification, error) {
	n, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *fakeRepo) Update(ctx context.Context, id uint64, patch *Patch) error {
	n, ok := r.rows[id]
	if !ok {
		return errors.New("notification not found")
	}
	if patch.Status != nil {
		n.Status = *patch.Status
	}
	if patch.SendTime != nil {
		n.SendTime = patch.SendTime
	}
	if patch.RetryCount != nil {
		n.RetryCount = *patch.RetryCount
	}
	if patch.ErrorMessage != nil {
		n.ErrorMessage = *patch.ErrorMessage
	}
	if patch.IsDeleted != nil {
		n.IsDeleted = *patch.IsDeleted
	}
	return nil
}

func (r *fakeRepo) FindSendable(ctx context.Context, limit int) ([]*Notification, error) {
	var out []*Notification
	for _, n := range r.rows {
		if n.IsDeleted {
			continue
		}
		if (n.Status == StatusPending || n.Status == StatusRetry) && n.RetryCount < n.MaxRetries {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) FindByBooking(ctx context.Context, bookingID uint64) ([]*Notification, error) {
	var out []*Notification
	for _, n := range r.rows {
		if n.BookingID == bookingID && !n.IsDeleted {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindByUser(ctx context.Context, userID uint64, limit int) ([]*Notification, error) {
	var out []*Notification
	for _, n := range r.rows {
		if n.UserID == userID && !n.IsDeleted {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) RetryFailed(ctx context.Context) (int64, error) {
	return r.retried, nil
}

func (r *fakeRepo) SoftDeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.deletedBefore = &before
	return r.deleted, nil
}

type fakeBookingRepo struct {
	bookings map[uint64]*booking.Booking
}

func (r *fakeBookingRepo) GetByID(ctx context.Context, id uint64) (*booking.Booking, error) {
	return r.bookings[id], nil
}

func (r *fakeBookingRepo) FindConfirmedByUserAndRoom(ctx context.Context, userID, roomID uint64) ([]*booking.Booking, error) {
	return nil, nil
}

type fakeRoomRepo struct {
	rooms map[uint64]*room.Room
}

func (r *fakeRoomRepo) GetByID(ctx context.Context, id uint64) (*room.Room, error) {
	return r.rooms[id], nil
}

type fakeUserRepo struct {
	users map[uint64]*user.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uint64) (*user.User, error) {
	return r.users[id], nil
}

type fakeSender struct {
	err       error
	delivered []string
}

func (s *fakeSender) Deliver(ctx context.Context, userRef, title, content string) error {
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, userRef)
	return nil
}

type testDeps struct {
	repo     *fakeRepo
	bookings *fakeBookingRepo
	rooms    *fakeRoomRepo
	users    *fakeUserRepo
	sender   *fakeSender
	uc       *Usecase
}

func newTestDeps() *testDeps {
	cfg := &config.Config{}
	cfg.Notification.BatchSize = 50
	cfg.Notification.MaxRetries = 3
	cfg.Notification.RetentionDays = 30

	d := &testDeps{
		repo:     newFakeRepo(),
		bookings: &fakeBookingRepo{bookings: make(map[uint64]*booking.Booking)},
		rooms:    &fakeRoomRepo{rooms: make(map[uint64]*room.Room)},
		users:    &fakeUserRepo{users: make(map[uint64]*user.User)},
		sender:   &fakeSender{},
	}
	d.users.users[100] = &user.User{ID: 100, OpenID: "wx-openid-100", Nickname: "测试用户"}
	d.uc = NewUsecase(d.repo, d.bookings, d.rooms, d.users, d.sender, nil, cfg, zap.NewNop())
	return d
}

func (d *testDeps) addPending(id uint64, retryCount int) {
	d.repo.rows[id] = &Notification{
		ID:         id,
		BookingID:  1,
		UserID:     100,
		Type:       TypeBookingReminder,
		Title:      "预订即将到期提醒",
		Content:    "内容",
		Status:     StatusPending,
		RetryCount: retryCount,
		MaxRetries: 3,
	}
}

// TestSendSuccess 投递成功后状态转为 sent 并记录发送时间
func TestSendSuccess(t *testing.T) {
	d := newTestDeps()
	d.addPending(1, 0)

	ok, err := d.uc.Send(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	n := d.repo.rows[1]
	assert.Equal(t, StatusSent, n.Status)
	require.NotNil(t, n.SendTime)
	assert.Equal(t, []string{"wx-openid-100"}, d.sender.delivered)
}

// TestSendFailureMarksRetry 投递失败累加重试计数并转为 retry
func TestSendFailureMarksRetry(t *testing.T) {
	d := newTestDeps()
	d.sender.err = errors.New("push service unavailable")
	d.addPending(1, 0)

	ok, err := d.uc.Send(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	n := d.repo.rows[1]
	assert.Equal(t, StatusRetry, n.Status)
	assert.Equal(t, 1, n.RetryCount)
	assert.Contains(t, n.ErrorMessage, "push service unavailable")
}

// TestSendExhaustsRetries 重试用尽后转为 failed
func TestSendExhaustsRetries(t *testing.T) {
	d := newTestDeps()
	d.sender.err = errors.New("push service unavailable")
	d.addPending(1, 2)

	ok, err := d.uc.Send(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	n := d.repo.rows[1]
	assert.Equal(t, StatusFailed, n.Status)
	assert.Equal(t, 3, n.RetryCount)
}

// TestSendUserMissing 用户不存在按投递失败处理
func TestSendUserMissing(t *testing.T) {
	d := newTestDeps()
	d.addPending(1, 0)
	d.repo.rows[1].UserID = 999

	ok, err := d.uc.Send(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	n := d.repo.rows[1]
	assert.Equal(t, StatusRetry, n.Status)
	assert.Equal(t, "user not found", n.ErrorMessage)
}

// TestProcessPendingBatch 批量投递待发通知
func TestProcessPendingBatch(t *testing.T) {
	d := newTestDeps()
	d.addPending(1, 0)
	d.addPending(2, 0)
	d.addPending(3, 0)

	processed, err := d.uc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	for id := uint64(1); id <= 3; id++ {
		assert.Equal(t, StatusSent, d.repo.rows[id].Status)
	}
}

// TestCleanupOldDefaultRetention 清理天数不合法时用配置的保留期
func TestCleanupOldDefaultRetention(t *testing.T) {
	d := newTestDeps()
	d.repo.deleted = 5

	count, err := d.uc.CleanupOld(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	require.NotNil(t, d.repo.deletedBefore)
	want := time.Now().AddDate(0, 0, -30)
	assert.WithinDuration(t, want, *d.repo.deletedBefore, time.Minute)
}

// TestRetryFailedReportsCount 重排数量原样返回
func TestRetryFailedReportsCount(t *testing.T) {
	d := newTestDeps()
	d.repo.retried = 4

	count, err := d.uc.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

// TestExecuteCreatesAndSendsReminder 提醒任务回调创建通知并投递
func TestExecuteCreatesAndSendsReminder(t *testing.T) {
	d := newTestDeps()
	start := time.Now().Add(30 * time.Minute)
	end := time.Now().Add(2 * time.Hour)
	d.bookings.bookings[1] = &booking.Booking{
		ID:        1,
		UserID:    100,
		RoomID:    9,
		StartTime: start.Unix(),
		EndTime:   end.Unix(),
		Status:    booking.StatusConfirmed,
	}
	d.rooms.rooms[9] = &room.Room{ID: 9, Name: "棋牌室9"}

	result, err := d.uc.Execute(context.Background(), reminderTask(1))
	require.NoError(t, err)
	assert.Equal(t, "reminder sent", result)

	list, err := d.repo.FindByBooking(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, TypeBookingReminder, list[0].Type)
	assert.Equal(t, StatusSent, list[0].Status)
	assert.Contains(t, list[0].Content, "棋牌室9")
}

// TestExecuteSkipsEndedBooking 预订已结束时跳过且不产生通知
func TestExecuteSkipsEndedBooking(t *testing.T) {
	d := newTestDeps()
	d.bookings.bookings[1] = &booking.Booking{
		ID:     1,
		UserID: 100,
		RoomID: 9,
		Status: booking.StatusCancelled,
	}

	result, err := d.uc.Execute(context.Background(), reminderTask(1))
	require.NoError(t, err)
	assert.Equal(t, "skipped: booking ended", result)

	list, err := d.repo.FindByBooking(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestExecuteBookingMissing 预订不存在返回哨兵错误
func TestExecuteBookingMissing(t *testing.T) {
	d := newTestDeps()

	_, err := d.uc.Execute(context.Background(), reminderTask(404))
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

// TestScheduleBookingReminderBookingMissing 预订不存在时不编排任务
func TestScheduleBookingReminderBookingMissing(t *testing.T) {
	d := newTestDeps()

	_, err := d.uc.ScheduleBookingReminder(context.Background(), 404, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, booking.ErrNotFound)
}
