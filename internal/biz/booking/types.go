package booking

import "fmt"

// Status 预订状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusUsing     Status = "using"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus 解析预订状态，非法值报错
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusUsing, StatusCompleted, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown booking status: %q", s)
	}
}

// Ended 预订是否已结束（取消或完成）
func (s Status) Ended() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// AccessReason 开门校验拒绝原因
type AccessReason string

const (
	ReasonNoBooking AccessReason = "no_booking" // 没有可用预订
	ReasonTooEarly  AccessReason = "too_early"  // 未到提前开门时间
	ReasonExpired   AccessReason = "expired"    // 预订已过期
)

// AccessDecision 开门校验结果
type AccessDecision struct {
	Valid   bool
	Reason  AccessReason
	Booking *Booking
}
