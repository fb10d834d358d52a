package notification

import "fmt"

// Type 通知类型
type Type string

const (
	TypeBookingReminder  Type = "booking_reminder"  // 预订到期提醒
	TypeBookingExpired   Type = "booking_expired"   // 预订已过期
	TypeBookingCancelled Type = "booking_cancelled" // 预订已取消
)

// ParseType 解析通知类型，未知值报错
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeBookingReminder, TypeBookingExpired, TypeBookingCancelled:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown notification type: %q", s)
	}
}

// Status 通知投递状态
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusRetry   Status = "retry"
)

// ParseStatus 解析投递状态，非法值报错
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusSent, StatusFailed, StatusRetry:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown notification status: %q", s)
	}
}
