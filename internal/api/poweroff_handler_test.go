package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/poweroff"
	"github.com/booking/scheduler/internal/scheduler"
)

type powerOffFixture struct {
	router   *gin.Engine
	sched    *scheduler.Scheduler
	powerOff *poweroff.Usecase
	audits   *fakeAuditRepo
}

func newPowerOffFixture(t *testing.T, bookings map[uint64]*booking.Booking) *powerOffFixture {
	cfg := testConfig()
	logger := zap.NewNop()

	bookingRepo := &fakeBookingRepo{bookings: bookings}
	bookingUC := booking.NewUsecase(bookingRepo, cfg)

	sched := newSched(t, cfg, newMemTasks())
	audits := &fakeAuditRepo{}
	powerOffUC := poweroff.NewUsecase(
		&fakePowerOffRepo{}, audits, bookingRepo, &fakeRoomRepo{}, &fakeRelay{},
		sched, cfg, logger)

	handler := NewPowerOffHandler(powerOffUC, bookingUC, sched, logger)

	router := gin.New()
	router.POST("/api/v1/power-off/schedule", handler.Schedule)
	router.GET("/api/v1/power-off/tasks", handler.List)
	router.DELETE("/api/v1/power-off/tasks/:booking_id/:room_id", handler.Cancel)
	router.GET("/api/v1/power-off/audit-log", handler.AuditLog)
	router.GET("/api/v1/power-off/scheduler/status", handler.SchedulerStatus)

	return &powerOffFixture{router: router, sched: sched, powerOff: powerOffUC, audits: audits}
}

// TestSchedulePowerOffExplicitTime 指定断电时间
func TestSchedulePowerOffExplicitTime(t *testing.T) {
	f := newPowerOffFixture(t, nil)

	when := time.Now().Add(2 * time.Hour).UTC()
	body := fmt.Sprintf(`{"booking_id":1,"room_id":9,"power_off_time":%q}`, when.Format(time.RFC3339))
	w := doRequest(f.router, http.MethodPost, "/api/v1/power-off/schedule", body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)

	var resp struct {
		TaskID string `json:"task_id"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, "power_off_1_9", resp.TaskID)

	jobs := f.sched.ArmedJobs()
	require.Len(t, jobs, 1)
	assert.WithinDuration(t, when, jobs[0].RunAt, time.Second)
}

// TestSchedulePowerOffDefaultTime 缺省时间取预订结束加缓冲
func TestSchedulePowerOffDefaultTime(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Hour)
	f := newPowerOffFixture(t, map[uint64]*booking.Booking{
		1: confirmedBooking(1, 100, 9, now.Add(-time.Hour), end),
	})

	w := doRequest(f.router, http.MethodPost, "/api/v1/power-off/schedule",
		`{"booking_id":1,"room_id":9}`, nil)

	require.Equal(t, http.StatusOK, w.Code)

	jobs := f.sched.ArmedJobs()
	require.Len(t, jobs, 1)
	// 结束时间加 40 分钟缓冲
	assert.WithinDuration(t, time.Unix(end.Unix(), 0).Add(40*time.Minute), jobs[0].RunAt, time.Second)
}

// TestSchedulePowerOffBookingMissing 缺省时间但预订不存在
func TestSchedulePowerOffBookingMissing(t *testing.T) {
	f := newPowerOffFixture(t, nil)

	w := doRequest(f.router, http.MethodPost, "/api/v1/power-off/schedule",
		`{"booking_id":404,"room_id":9}`, nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "booking not found", env.Message)
}

// TestCancelPowerOffTask 取消断电任务
func TestCancelPowerOffTask(t *testing.T) {
	f := newPowerOffFixture(t, nil)

	_, err := f.powerOff.SchedulePowerOff(context.Background(), 1, 9, time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	w := doRequest(f.router, http.MethodDelete, "/api/v1/power-off/tasks/1/9", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.sched.ArmedJobs())
}

// TestCancelPowerOffUnknown 从未安排过的键返回 404
func TestCancelPowerOffUnknown(t *testing.T) {
	f := newPowerOffFixture(t, nil)

	w := doRequest(f.router, http.MethodDelete, "/api/v1/power-off/tasks/404/9", "", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "power off task not found", env.Message)
}

// TestListPowerOffTasks 按条件过滤断电任务
func TestListPowerOffTasks(t *testing.T) {
	f := newPowerOffFixture(t, nil)
	ctx := context.Background()

	_, err := f.powerOff.SchedulePowerOff(ctx, 1, 9, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = f.powerOff.SchedulePowerOff(ctx, 2, 10, time.Now().Add(time.Hour))
	require.NoError(t, err)

	w := doRequest(f.router, http.MethodGet, "/api/v1/power-off/tasks?booking_id=1", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)

	var resp struct {
		Total int64              `json:"total"`
		Items []PowerOffTaskResp `json:"items"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, uint64(1), resp.Items[0].BookingID)
	assert.Equal(t, "scheduled", resp.Items[0].Status)
}

// TestPowerOffAuditLog 审计日志查询
func TestPowerOffAuditLog(t *testing.T) {
	f := newPowerOffFixture(t, nil)
	f.audits.entries = []*poweroff.AuditEntry{
		{
			ID: 1, BookingID: 1, RoomID: 9,
			OperationType: poweroff.OpAutomaticPowerOff,
			Result:        poweroff.ResultSuccess,
			Details:       "Automatic power-off completed (attempt 1/3)",
		},
	}

	w := doRequest(f.router, http.MethodGet, "/api/v1/power-off/audit-log", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)

	var items []AuditEntryResp
	decodeData(t, env, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "automatic_power_off", items[0].OperationType)
	assert.Equal(t, "success", items[0].Result)
}

// TestSchedulerStatus 调度器状态接口
func TestSchedulerStatus(t *testing.T) {
	f := newPowerOffFixture(t, nil)

	_, err := f.powerOff.SchedulePowerOff(context.Background(), 1, 9, time.Now().Add(time.Hour))
	require.NoError(t, err)

	w := doRequest(f.router, http.MethodGet, "/api/v1/power-off/scheduler/status", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)

	var resp struct {
		Running bool                `json:"running"`
		Count   int                 `json:"count"`
		Jobs    []scheduler.JobInfo `json:"jobs"`
	}
	decodeData(t, env, &resp)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "power_off_1_9", resp.Jobs[0].TaskID)
}
