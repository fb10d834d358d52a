package poweroff

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/room"
	"github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/internal/scheduler"
	"github.com/booking/scheduler/pkg/config"
)

func TestMain(m *testing.M) {
	idgen.SetIdGenerator(idgen.NewIdGeneratorOptions(1))
	os.Exit(m.Run())
}

type statusChange struct {
	bookingID  uint64
	roomID     uint64
	status     Status
	executedAt *time.Time
}

type fakeRepo struct {
	upserts []time.Time
	changes []statusChange
}

func (r *fakeRepo) Upsert(ctx context.Context, bookingID, roomID uint64, scheduledTime time.Time) (*PowerOffTask, error) {
	r.upserts = append(r.upserts, scheduledTime)
	return &PowerOffTask{
		ID:            1,
		BookingID:     bookingID,
		RoomID:        roomID,
		ScheduledTime: scheduledTime,
		Status:        StatusScheduled,
	}, nil
}

func (r *fakeRepo) UpdateStatusByKey(ctx context.Context, bookingID, roomID uint64, status Status, executedAt *time.Time) error {
	r.changes = append(r.changes, statusChange{bookingID, roomID, status, executedAt})
	return nil
}

func (r *fakeRepo) List(ctx context.Context, filter *Filter, page, size int) ([]*PowerOffTask, int64, error) {
	return nil, 0, nil
}

func (r *fakeRepo) lastStatus() (Status, bool) {
	if len(r.changes) == 0 {
		return "", false
	}
	return r.changes[len(r.changes)-1].status, true
}

type fakeAuditRepo struct {
	entries []*AuditEntry
}

func (r *fakeAuditRepo) Append(ctx context.Context, entry *AuditEntry) error {
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *fakeAuditRepo) List(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error) {
	return r.entries, nil
}

func (r *fakeAuditRepo) countByResult(result AuditResult) int {
	count := 0
	for _, e := range r.entries {
		if e.Result == result {
			count++
		}
	}
	return count
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

type relayCall struct {
	controllerID string
	port         int
}

// fakeRelay 按预设脚本逐次返回结果，脚本耗尽后一直成功
type fakeRelay struct {
	script []error
	calls  []relayCall
}

func (f *fakeRelay) PowerOff(ctx context.Context, controllerID string, port int) error {
	f.calls = append(f.calls, relayCall{controllerID, port})
	if len(f.script) == 0 {
		return nil
	}
	err := f.script[0]
	f.script = f.script[1:]
	return err
}

type testDeps struct {
	repo     *fakeRepo
	audit    *fakeAuditRepo
	bookings *fakeBookingRepo
	rooms    *fakeRoomRepo
	relay    *fakeRelay
	uc       *Usecase
}

func newTestDeps(sched *scheduler.Scheduler) *testDeps {
	cfg := &config.Config{}
	cfg.Relay.MaxRetries = 3
	cfg.Relay.RetryDelay = time.Millisecond
	cfg.Relay.PowerOffBuffer = 40 * time.Minute

	d := &testDeps{
		repo:     &fakeRepo{},
		audit:    &fakeAuditRepo{},
		bookings: &fakeBookingRepo{bookings: make(map[uint64]*booking.Booking)},
		rooms:    &fakeRoomRepo{rooms: make(map[uint64]*room.Room)},
		relay:    &fakeRelay{},
	}
	d.bookings.bookings[1] = &booking.Booking{
		ID:        1,
		UserID:    100,
		RoomID:    9,
		StartTime: time.Now().Add(-2 * time.Hour).Unix(),
		EndTime:   time.Now().Add(-40 * time.Minute).Unix(),
		Status:    booking.StatusCompleted,
	}
	d.rooms.rooms[9] = &room.Room{ID: 9, Name: "棋牌室9", RelayControllerID: "controller1", RelayPort: 3, IsAvailable: true}
	d.uc = NewUsecase(d.repo, d.audit, d.bookings, d.rooms, d.relay, sched, cfg, zap.NewNop())
	return d
}

func powerOffTask(bookingID, roomID uint64) *task.ScheduledTask {
	return &task.ScheduledTask{
		ID:      1,
		TaskID:  task.PowerOffTaskID(bookingID, roomID),
		Type:    task.TypePowerOff,
		Ref:     task.BookingRef(bookingID),
		Payload: map[string]any{"room_id": roomID},
		Status:  task.StatusRunning,
	}
}

// TestExecuteSuccessFirstAttempt 首次尝试成功，落成功审计并标记完成
func TestExecuteSuccessFirstAttempt(t *testing.T) {
	d := newTestDeps(nil)

	result, err := d.uc.Execute(context.Background(), powerOffTask(1, 9))
	require.NoError(t, err)
	assert.Equal(t, "power off completed", result)

	require.Len(t, d.relay.calls, 1)
	assert.Equal(t, relayCall{"controller1", 3}, d.relay.calls[0])

	assert.Equal(t, 1, d.audit.countByResult(ResultSuccess))
	assert.Equal(t, 0, d.audit.countByResult(ResultFailed))

	status, ok := d.repo.lastStatus()
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, status)
	require.NotNil(t, d.repo.changes[len(d.repo.changes)-1].executedAt)
}

// TestExecuteRetriesUntilSuccess 前两次失败第三次成功，每次尝试都有审计
func TestExecuteRetriesUntilSuccess(t *testing.T) {
	d := newTestDeps(nil)
	d.relay.script = []error{errors.New("timeout"), errors.New("timeout"), nil}

	result, err := d.uc.Execute(context.Background(), powerOffTask(1, 9))
	require.NoError(t, err)
	assert.Equal(t, "power off completed", result)

	assert.Len(t, d.relay.calls, 3)
	assert.Equal(t, 2, d.audit.countByResult(ResultFailed))
	assert.Equal(t, 1, d.audit.countByResult(ResultSuccess))

	status, _ := d.repo.lastStatus()
	assert.Equal(t, StatusCompleted, status)
}

// TestExecuteFailsAfterMaxRetries 重试用尽后报错，尝试次数和审计条数都等于上限
func TestExecuteFailsAfterMaxRetries(t *testing.T) {
	d := newTestDeps(nil)
	d.relay.script = []error{
		errors.New("connection refused"),
		errors.New("connection refused"),
		errors.New("connection refused"),
	}

	_, err := d.uc.Execute(context.Background(), powerOffTask(1, 9))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")

	assert.Len(t, d.relay.calls, 3)
	assert.Equal(t, 3, d.audit.countByResult(ResultFailed))
	assert.Equal(t, 0, d.audit.countByResult(ResultSuccess))

	status, _ := d.repo.lastStatus()
	assert.Equal(t, StatusFailed, status)
}

// TestExecuteSkipsCancelledBooking 预订已取消时不接触继电器
func TestExecuteSkipsCancelledBooking(t *testing.T) {
	d := newTestDeps(nil)
	d.bookings.bookings[1].Status = booking.StatusCancelled

	result, err := d.uc.Execute(context.Background(), powerOffTask(1, 9))
	require.NoError(t, err)
	assert.Equal(t, "skipped: booking cancelled", result)

	assert.Empty(t, d.relay.calls)
	assert.Empty(t, d.audit.entries)

	status, _ := d.repo.lastStatus()
	assert.Equal(t, StatusCancelled, status)
}

// TestExecuteRoomMissing 房间不存在是硬失败，不触发重试
func TestExecuteRoomMissing(t *testing.T) {
	d := newTestDeps(nil)
	delete(d.rooms.rooms, 9)

	_, err := d.uc.Execute(context.Background(), powerOffTask(1, 9))
	require.Error(t, err)

	assert.Empty(t, d.relay.calls)
	assert.Equal(t, 1, d.audit.countByResult(ResultError))

	status, _ := d.repo.lastStatus()
	assert.Equal(t, StatusFailed, status)
}

// TestExecuteRoomWithoutRelay 未接电控的房间直接失败
func TestExecuteRoomWithoutRelay(t *testing.T) {
	d := newTestDeps(nil)
	d.rooms.rooms[9].RelayControllerID = ""

	_, err := d.uc.Execute(context.Background(), powerOffTask(1, 9))
	require.Error(t, err)

	assert.Empty(t, d.relay.calls)
	assert.Equal(t, 1, d.audit.countByResult(ResultError))
}

// TestExecuteMissingRoomID 载荷缺少房间ID直接报错
func TestExecuteMissingRoomID(t *testing.T) {
	d := newTestDeps(nil)
	tsk := powerOffTask(1, 9)
	tsk.Payload = map[string]any{}

	_, err := d.uc.Execute(context.Background(), tsk)
	assert.Error(t, err)
}

// TestPowerOffTimeFor 断电时间为预订结束后加缓冲
func TestPowerOffTimeFor(t *testing.T) {
	d := newTestDeps(nil)
	end := time.Date(2025, 6, 1, 18, 0, 0, 0, time.Local)
	b := &booking.Booking{EndTime: end.Unix()}

	got := d.uc.PowerOffTimeFor(b)
	assert.Equal(t, time.Date(2025, 6, 1, 18, 40, 0, 0, time.Local), got)
}

// stubTaskRepo 只实现编排和取消用到的方法
type stubTaskRepo struct {
	task.Repo
	active map[string]*task.ScheduledTask
}

func newStubTaskRepo() *stubTaskRepo {
	return &stubTaskRepo{active: make(map[string]*task.ScheduledTask)}
}

func (r *stubTaskRepo) Create(ctx context.Context, t *task.ScheduledTask) error {
	r.active[t.TaskID] = t
	return nil
}

func (r *stubTaskRepo) GetActiveByTaskID(ctx context.Context, taskID string) (*task.ScheduledTask, error) {
	return r.active[taskID], nil
}

func (r *stubTaskRepo) Update(ctx context.Context, id uint64, patch *task.Patch) error {
	for taskID, t := range r.active {
		if t.ID == id && patch.IsDeleted != nil && *patch.IsDeleted {
			delete(r.active, taskID)
		}
	}
	return nil
}

func (r *stubTaskRepo) CancelPending(ctx context.Context, taskID string) (bool, error) {
	if _, ok := r.active[taskID]; !ok {
		return false, nil
	}
	delete(r.active, taskID)
	return true, nil
}

func newTestScheduler(t *testing.T, repo task.Repo) *scheduler.Scheduler {
	cfg := &config.Config{}
	cfg.Scheduler.InstanceID = "test-instance"
	cfg.Scheduler.MaxWorkers = 2

	runner := scheduler.NewRunner(cfg, zap.NewNop(), repo)
	checker := scheduler.NewHealthChecker(cfg, nil, zap.NewNop())
	sched, err := scheduler.New(cfg, nil, zap.NewNop(), runner, checker, repo)
	require.NoError(t, err)
	return sched
}

// TestSchedulePowerOff 安排断电写入任务行并编排定时器
func TestSchedulePowerOff(t *testing.T) {
	taskRepo := newStubTaskRepo()
	sched := newTestScheduler(t, taskRepo)
	d := newTestDeps(sched)

	when := time.Now().Add(2 * time.Hour)
	taskID, err := d.uc.SchedulePowerOff(context.Background(), 1, 9, when)
	require.NoError(t, err)
	assert.Equal(t, "power_off_1_9", taskID)

	require.Len(t, d.repo.upserts, 1)
	assert.True(t, d.repo.upserts[0].Equal(when))

	jobs := sched.ArmedJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "power_off_1_9", jobs[0].TaskID)
}

// TestCancelPowerOff 取消后定时器解除且任务行标记取消
func TestCancelPowerOff(t *testing.T) {
	taskRepo := newStubTaskRepo()
	sched := newTestScheduler(t, taskRepo)
	d := newTestDeps(sched)

	_, err := d.uc.SchedulePowerOff(context.Background(), 1, 9, time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	ok, err := d.uc.CancelPowerOff(context.Background(), 1, 9)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Empty(t, sched.ArmedJobs())

	status, found := d.repo.lastStatus()
	require.True(t, found)
	assert.Equal(t, StatusCancelled, status)
}

// TestCancelPowerOffUnknownKey 从未安排过的键返回 false
func TestCancelPowerOffUnknownKey(t *testing.T) {
	taskRepo := newStubTaskRepo()
	sched := newTestScheduler(t, taskRepo)
	d := newTestDeps(sched)

	ok, err := d.uc.CancelPowerOff(context.Background(), 7, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, d.repo.changes)
}
