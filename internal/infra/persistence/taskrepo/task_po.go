package taskrepo

import (
	"time"

	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
	"gorm.io/datatypes"
)

type ScheduledTaskPo struct {
	commonrepo.Mode
	TaskID        string            `gorm:"column:task_id;size:191;not null;index:idx_task_business_key"`       // 业务幂等键
	TaskType      string            `gorm:"column:task_type;size:50;not null;index"`                            // 任务类型
	RelatedType   string            `gorm:"column:related_type;size:50;not null;index:idx_task_related"`        // 关联对象类型
	RelatedID     uint64            `gorm:"column:related_id;not null;index:idx_task_related"`                  // 关联对象ID
	Title         string            `gorm:"column:title;size:255;not null"`                                     // 任务标题
	Description   string            `gorm:"column:description;type:text"`                                       // 任务描述
	Payload       datatypes.JSONMap `gorm:"column:payload;type:json"`                                           // 执行器参数
	ScheduledTime time.Time         `gorm:"column:scheduled_time;not null;index"`                               // 计划执行时间
	ExecutedTime  *time.Time        `gorm:"column:executed_time"`                                               // 实际开始执行时间
	Status        string            `gorm:"column:status;size:50;not null;index"`                               // 任务状态
	Result        string            `gorm:"column:result;type:text"`                                            // 执行结果
	ErrorMessage  string            `gorm:"column:error_message;type:text"`                                     // 失败原因
	RetryCount    int               `gorm:"column:retry_count;not null;default:0"`                              // 已重试次数
	MaxRetries    int               `gorm:"column:max_retries;not null;default:3"`                              // 最大重试次数
	IsDeleted     bool              `gorm:"column:is_deleted;not null;default:false;index:idx_task_business_key"` // 软删除标记
}

func (ScheduledTaskPo) TableName() string {
	return "scheduled_tasks"
}
