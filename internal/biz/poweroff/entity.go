package poweroff

import "time"

// PowerOffTask 断电任务，以 (booking_id, room_id) 为业务键
type PowerOffTask struct {
	ID            uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	BookingID     uint64
	RoomID        uint64
	ScheduledTime time.Time
	ExecutedAt    *time.Time
	Status        Status
}

// AuditEntry 断电审计日志，只追加不修改
// 任务状态可被覆盖，审计日志才是实际发生过什么的记录
type AuditEntry struct {
	ID            uint64
	CreatedAt     time.Time
	BookingID     uint64
	RoomID        uint64
	OperationType string
	Result        AuditResult
	Details       string
}
