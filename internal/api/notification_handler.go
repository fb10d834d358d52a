package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/notification"
)

// NotificationHandler 通知处理器
type NotificationHandler struct {
	notifications *notification.Usecase
	logger        *zap.Logger
}

func NewNotificationHandler(notifications *notification.Usecase, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger,
	}
}

type NotificationResp struct {
	ID           uint64     `json:"id"`
	BookingID    uint64     `json:"booking_id"`
	UserID       uint64     `json:"user_id"`
	Type         string     `json:"notification_type"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Status       string     `json:"status"`
	SendTime     *time.Time `json:"send_time,omitempty"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newNotificationResp(n *notification.Notification) NotificationResp {
	return NotificationResp{
		ID:           n.ID,
		BookingID:    n.BookingID,
		UserID:       n.UserID,
		Type:         string(n.Type),
		Title:        n.Title,
		Content:      n.Content,
		Status:       string(n.Status),
		SendTime:     n.SendTime,
		RetryCount:   n.RetryCount,
		MaxRetries:   n.MaxRetries,
		ErrorMessage: n.ErrorMessage,
		CreatedAt:    n.CreatedAt,
	}
}

// ListByUser 用户的通知列表
func (h *NotificationHandler) ListByUser(c *gin.Context) {
	userID := cast.ToUint64(c.Param("user_id"))
	if userID == 0 {
		respondError(c, http.StatusBadRequest, "invalid user_id")
		return
	}
	limit := cast.ToInt(c.DefaultQuery("limit", "20"))

	notifications, err := h.notifications.GetByUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, lo.Map(notifications, func(n *notification.Notification, _ int) NotificationResp {
		return newNotificationResp(n)
	}))
}

// ListByBooking 预订的通知列表
func (h *NotificationHandler) ListByBooking(c *gin.Context) {
	bookingID := cast.ToUint64(c.Param("booking_id"))
	if bookingID == 0 {
		respondError(c, http.StatusBadRequest, "invalid booking_id")
		return
	}

	notifications, err := h.notifications.GetByBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, lo.Map(notifications, func(n *notification.Notification, _ int) NotificationResp {
		return newNotificationResp(n)
	}))
}

// RetryFailed 手动把可重试的失败通知拉回重试队列
func (h *NotificationHandler) RetryFailed(c *gin.Context) {
	count, err := h.notifications.RetryFailed(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, gin.H{"count": count})
}

// CleanupOld 手动清理过期通知
func (h *NotificationHandler) CleanupOld(c *gin.Context) {
	days := cast.ToInt(c.DefaultQuery("days", "0")) // 0走配置的保留天数

	count, err := h.notifications.CleanupOld(c.Request.Context(), days)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondOK(c, gin.H{"count": count})
}
