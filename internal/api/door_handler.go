package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/poweroff"
	"github.com/booking/scheduler/internal/relay"
)

// DoorHandler 门禁处理器
type DoorHandler struct {
	bookings *booking.Usecase
	powerOff *poweroff.Usecase
	gateway  *relay.GatewayClient
	logger   *zap.Logger
}

func NewDoorHandler(bookings *booking.Usecase, powerOff *poweroff.Usecase, gateway *relay.GatewayClient, logger *zap.Logger) *DoorHandler {
	return &DoorHandler{
		bookings: bookings,
		powerOff: powerOff,
		gateway:  gateway,
		logger:   logger,
	}
}

type OpenDoorReq struct {
	DoorID uint64 `json:"door_id" binding:"required"`
}

type OpenDoorResp struct {
	DoorID    uint64 `json:"door_id"`
	BookingID uint64 `json:"booking_id"`
	EndTime   int64  `json:"end_time"`
}

// OpenDoor 校验预订资格并发开门脉冲
// 开门成功后顺带编排预订结束后的自动断电
func (h *DoorHandler) OpenDoor(c *gin.Context) {
	userID := cast.ToUint64(c.GetHeader("X-User-ID"))
	if userID == 0 {
		respondError(c, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req OpenDoorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := h.bookings.ValidateDoorAccess(c.Request.Context(), userID, req.DoorID, time.Now())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !decision.Valid {
		h.logger.Info("door access denied",
			zap.Uint64("user_id", userID),
			zap.Uint64("door_id", req.DoorID),
			zap.String("reason", string(decision.Reason)))
		respondError(c, http.StatusForbidden, string(decision.Reason))
		return
	}

	if err := h.gateway.OpenDoor(c.Request.Context(), int(req.DoorID)); err != nil {
		h.logger.Error("door open failed",
			zap.Uint64("door_id", req.DoorID),
			zap.Error(err))
		respondError(c, http.StatusBadGateway, "door control failed")
		return
	}

	// 断电编排失败只记日志，不能因为这个把人关在门外
	b := decision.Booking
	if _, err := h.powerOff.SchedulePowerOff(c.Request.Context(), b.ID, b.RoomID, h.powerOff.PowerOffTimeFor(b)); err != nil {
		h.logger.Error("failed to schedule power off after door open",
			zap.Uint64("booking_id", b.ID),
			zap.Uint64("room_id", b.RoomID),
			zap.Error(err))
	}

	// 网关可能被上一轮断电带掉，确认它还在线
	h.gateway.EnsureGatewayOn(c.Request.Context(), int(req.DoorID))

	respondOK(c, OpenDoorResp{
		DoorID:    req.DoorID,
		BookingID: b.ID,
		EndTime:   b.EndTime,
	})
}
