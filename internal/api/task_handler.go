package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/notification"
	"github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/internal/scheduler"
)

// TaskHandler 计划任务处理器
type TaskHandler struct {
	notifications *notification.Usecase
	sched         *scheduler.Scheduler
	logger        *zap.Logger
}

func NewTaskHandler(notifications *notification.Usecase, sched *scheduler.Scheduler, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		notifications: notifications,
		sched:         sched,
		logger:        logger,
	}
}

type ScheduleReminderReq struct {
	BookingID uint64    `json:"booking_id" binding:"required"`
	RemindAt  time.Time `json:"remind_at" binding:"required"`
}

type TaskResp struct {
	ID            uint64         `json:"id"`
	TaskID        string         `json:"task_id"`
	TaskType      string         `json:"task_type"`
	RelatedType   string         `json:"related_type"`
	RelatedID     uint64         `json:"related_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Payload       map[string]any `json:"payload,omitempty"`
	ScheduledTime time.Time      `json:"scheduled_time"`
	ExecutedTime  *time.Time     `json:"executed_time,omitempty"`
	Status        string         `json:"status"`
	Result        string         `json:"result,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	RetryCount    int            `json:"retry_count"`
	MaxRetries    int            `json:"max_retries"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func newTaskResp(t *task.ScheduledTask) TaskResp {
	return TaskResp{
		ID:            t.ID,
		TaskID:        t.TaskID,
		TaskType:      string(t.Type),
		RelatedType:   string(t.Ref.Kind),
		RelatedID:     t.Ref.ID,
		Title:         t.Title,
		Description:   t.Description,
		Payload:       t.Payload,
		ScheduledTime: t.ScheduledTime,
		ExecutedTime:  t.ExecutedTime,
		Status:        string(t.Status),
		Result:        t.Result,
		ErrorMessage:  t.ErrorMessage,
		RetryCount:    t.RetryCount,
		MaxRetries:    t.MaxRetries,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// ScheduleReminder 安排预订提醒
func (h *TaskHandler) ScheduleReminder(c *gin.Context) {
	var req ScheduleReminderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	taskID, err := h.notifications.ScheduleBookingReminder(c.Request.Context(), req.BookingID, req.RemindAt)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, gin.H{
		"task_id":   taskID,
		"remind_at": req.RemindAt,
	})
}

// ListByBooking 查询预订关联的全部计划任务
func (h *TaskHandler) ListByBooking(c *gin.Context) {
	bookingID := cast.ToUint64(c.Param("booking_id"))
	if bookingID == 0 {
		respondError(c, http.StatusBadRequest, "invalid booking_id")
		return
	}

	tasks, err := h.sched.GetTasksByBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, lo.Map(tasks, func(t *task.ScheduledTask, _ int) TaskResp {
		return newTaskResp(t)
	}))
}

// Cancel 取消尚未执行的任务
func (h *TaskHandler) Cancel(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		respondError(c, http.StatusBadRequest, "invalid task_id")
		return
	}

	ok, err := h.sched.Cancel(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, "task not found or not pending")
		return
	}

	respondOK(c, nil)
}
