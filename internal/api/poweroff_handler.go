package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/poweroff"
	"github.com/booking/scheduler/internal/scheduler"
)

// PowerOffHandler 自动断电处理器
type PowerOffHandler struct {
	powerOff *poweroff.Usecase
	bookings *booking.Usecase
	sched    *scheduler.Scheduler
	logger   *zap.Logger
}

func NewPowerOffHandler(powerOff *poweroff.Usecase, bookings *booking.Usecase, sched *scheduler.Scheduler, logger *zap.Logger) *PowerOffHandler {
	return &PowerOffHandler{
		powerOff: powerOff,
		bookings: bookings,
		sched:    sched,
		logger:   logger,
	}
}

type SchedulePowerOffReq struct {
	BookingID    uint64     `json:"booking_id" binding:"required"`
	RoomID       uint64     `json:"room_id" binding:"required"`
	PowerOffTime *time.Time `json:"power_off_time"` // 缺省为预订结束时间加缓冲
}

type PowerOffTaskResp struct {
	ID            uint64     `json:"id"`
	BookingID     uint64     `json:"booking_id"`
	RoomID        uint64     `json:"room_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type AuditEntryResp struct {
	ID            uint64    `json:"id"`
	BookingID     uint64    `json:"booking_id"`
	RoomID        uint64    `json:"room_id"`
	OperationType string    `json:"operation_type"`
	Result        string    `json:"result"`
	Details       string    `json:"details"`
	CreatedAt     time.Time `json:"created_at"`
}

func newPowerOffTaskResp(t *poweroff.PowerOffTask) PowerOffTaskResp {
	return PowerOffTaskResp{
		ID:            t.ID,
		BookingID:     t.BookingID,
		RoomID:        t.RoomID,
		ScheduledTime: t.ScheduledTime,
		ExecutedAt:    t.ExecutedAt,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// Schedule 编排断电任务，未指定时间就按预订结束时间加缓冲
func (h *PowerOffHandler) Schedule(c *gin.Context) {
	var req SchedulePowerOffReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	when := time.Time{}
	if req.PowerOffTime != nil {
		when = *req.PowerOffTime
	} else {
		b, err := h.bookings.GetByID(c.Request.Context(), req.BookingID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err.Error())
			return
		}
		if b == nil {
			respondError(c, http.StatusNotFound, "booking not found")
			return
		}
		when = h.powerOff.PowerOffTimeFor(b)
	}

	taskID, err := h.powerOff.SchedulePowerOff(c.Request.Context(), req.BookingID, req.RoomID, when)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, gin.H{
		"task_id":        taskID,
		"power_off_time": when,
	})
}

// Cancel 取消断电任务
func (h *PowerOffHandler) Cancel(c *gin.Context) {
	bookingID := cast.ToUint64(c.Param("booking_id"))
	roomID := cast.ToUint64(c.Param("room_id"))
	if bookingID == 0 || roomID == 0 {
		respondError(c, http.StatusBadRequest, "invalid booking_id or room_id")
		return
	}

	ok, err := h.powerOff.CancelPowerOff(c.Request.Context(), bookingID, roomID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, "power off task not found")
		return
	}

	respondOK(c, nil)
}

// List 断电任务列表
func (h *PowerOffHandler) List(c *gin.Context) {
	filter := &poweroff.Filter{}
	if v := c.Query("booking_id"); v != "" {
		filter.BookingID = mo.Some(cast.ToUint64(v))
	}
	if v := c.Query("room_id"); v != "" {
		filter.RoomID = mo.Some(cast.ToUint64(v))
	}
	page := cast.ToInt(c.DefaultQuery("page", "1"))
	size := cast.ToInt(c.DefaultQuery("size", "20"))

	tasks, total, err := h.powerOff.GetPowerOffTasks(c.Request.Context(), filter, page, size)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, gin.H{
		"total": total,
		"items": lo.Map(tasks, func(t *poweroff.PowerOffTask, _ int) PowerOffTaskResp {
			return newPowerOffTaskResp(t)
		}),
	})
}

// AuditLog 断电审计日志
func (h *PowerOffHandler) AuditLog(c *gin.Context) {
	filter := &poweroff.AuditFilter{
		Limit: cast.ToInt(c.DefaultQuery("limit", "100")),
	}
	if v := c.Query("booking_id"); v != "" {
		filter.BookingID = mo.Some(cast.ToUint64(v))
	}
	if v := c.Query("room_id"); v != "" {
		filter.RoomID = mo.Some(cast.ToUint64(v))
	}

	entries, err := h.powerOff.GetAuditLog(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, lo.Map(entries, func(e *poweroff.AuditEntry, _ int) AuditEntryResp {
		return AuditEntryResp{
			ID:            e.ID,
			BookingID:     e.BookingID,
			RoomID:        e.RoomID,
			OperationType: e.OperationType,
			Result:        string(e.Result),
			Details:       e.Details,
			CreatedAt:     e.CreatedAt,
		}
	}))
}

// SchedulerStatus 调度器状态，给运维看当前挂着哪些定时器
func (h *PowerOffHandler) SchedulerStatus(c *gin.Context) {
	jobs := h.sched.ArmedJobs()
	respondOK(c, gin.H{
		"running": h.sched.Running(),
		"count":   len(jobs),
		"jobs":    jobs,
	})
}
