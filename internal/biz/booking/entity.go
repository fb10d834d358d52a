package booking

import "time"

// Booking 预订实体，本服务只读
type Booking struct {
	ID          uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      uint64
	RoomID      uint64
	StartTime   int64 // 开始时间，秒级时间戳
	EndTime     int64 // 结束时间，秒级时间戳
	Status      Status
	ContactName string
}

// StartAt 开始时间
func (b *Booking) StartAt() time.Time {
	return time.Unix(b.StartTime, 0)
}

// EndAt 结束时间
func (b *Booking) EndAt() time.Time {
	return time.Unix(b.EndTime, 0)
}

// Ended 预订是否已结束
func (b *Booking) Ended() bool {
	return b.Status.Ended()
}
