package poweroff

import "fmt"

// Status 断电任务状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus 解析断电任务状态，非法值报错
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusScheduled, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown power off task status: %q", s)
	}
}

// AuditResult 审计结果
type AuditResult string

const (
	ResultSuccess AuditResult = "success" // 继电器执行成功
	ResultFailed  AuditResult = "failed"  // 继电器执行失败
	ResultError   AuditResult = "error"   // 内部错误
)

// OpAutomaticPowerOff 本服务写入审计日志的操作类型
const OpAutomaticPowerOff = "automatic_power_off"
