package bookingrepo

import (
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

// BookingPo 预订行，由预订服务写入，这里只读
type BookingPo struct {
	commonrepo.Mode
	UserID      uint64 `gorm:"column:user_id;not null;index:idx_booking_user_room"`
	RoomID      uint64 `gorm:"column:room_id;not null;index:idx_booking_user_room"`
	StartTime   int64  `gorm:"column:start_time;not null;index"` // 秒级时间戳
	EndTime     int64  `gorm:"column:end_time;not null"`         // 秒级时间戳
	Status      string `gorm:"column:status;size:50;not null;index"`
	ContactName string `gorm:"column:contact_name;size:255"`
}

func (BookingPo) TableName() string {
	return "bookings"
}
