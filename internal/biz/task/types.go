package task

import (
	"fmt"
	"time"
)

// Type 任务类型
type Type string

const (
	TypeBookingReminder Type = "booking_reminder" // 预订到期提醒
	TypePowerOff        Type = "power_off"        // 自动断电
)

// ParseType 解析任务类型，未知值直接报错
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeBookingReminder, TypePowerOff:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown task type: %q", s)
	}
}

// Status 任务状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus 解析持久化的状态值，非法值报错而不是静默归类
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown task status: %q", s)
	}
}

// Terminal 是否为终态
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// RefKind 任务关联的业务实体类型
type RefKind string

const (
	RefBooking RefKind = "booking"
)

// ParseRefKind 解析关联实体类型
func ParseRefKind(s string) (RefKind, error) {
	switch RefKind(s) {
	case RefBooking:
		return RefKind(s), nil
	default:
		return "", fmt.Errorf("unknown task ref kind: %q", s)
	}
}

// Ref 任务关联的业务实体，kind 限定取值范围避免裸 ID 满天飞
type Ref struct {
	Kind RefKind `json:"kind"`
	ID   uint64  `json:"id"`
}

// BookingRef 预订关联
func BookingRef(bookingID uint64) Ref {
	return Ref{Kind: RefBooking, ID: bookingID}
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// PowerOffTaskID 断电任务的幂等键
func PowerOffTaskID(bookingID, roomID uint64) string {
	return fmt.Sprintf("power_off_%d_%d", bookingID, roomID)
}

// ReminderTaskID 预订提醒任务的幂等键
func ReminderTaskID(bookingID uint64, remindAt time.Time) string {
	return fmt.Sprintf("booking_reminder_%d_%s", bookingID, remindAt.Format("20060102150405"))
}
