package poweroffrepo

import (
	"time"

	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

type PowerOffTaskPo struct {
	commonrepo.Mode
	BookingID     uint64     `gorm:"column:booking_id;not null;index:idx_power_off_key,unique"` // 关联预订
	RoomID        uint64     `gorm:"column:room_id;not null;index:idx_power_off_key,unique"`    // 关联房间
	ScheduledTime time.Time  `gorm:"column:scheduled_time;not null;index"`                      // 计划断电时间
	ExecutedAt    *time.Time `gorm:"column:executed_at"`                                        // 实际断电时间
	Status        string     `gorm:"column:status;size:50;not null;index"`                      // 任务状态
}

func (PowerOffTaskPo) TableName() string {
	return "power_off_tasks"
}

// PowerOffAuditPo 审计日志行，写入后不再变更
type PowerOffAuditPo struct {
	ID            uint64    `gorm:"primarykey"`
	CreatedAt     time.Time `gorm:"index;autoCreateTime"`
	BookingID     uint64    `gorm:"column:booking_id;not null;index"`           // 关联预订
	RoomID        uint64    `gorm:"column:room_id;not null;index"`              // 关联房间
	OperationType string    `gorm:"column:operation_type;size:100;not null"`    // 操作类型
	Result        string    `gorm:"column:result;size:50;not null"`             // 执行结果
	Details       string    `gorm:"column:details;type:text"`                   // 详情
}

func (PowerOffAuditPo) TableName() string {
	return "power_off_audit_log"
}
