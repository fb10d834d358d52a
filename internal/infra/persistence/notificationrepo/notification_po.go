package notificationrepo

import (
	"time"

	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

type NotificationPo struct {
	commonrepo.Mode
	BookingID        uint64     `gorm:"column:booking_id;not null;index"`                // 关联预订
	UserID           uint64     `gorm:"column:user_id;not null;index"`                   // 接收用户
	NotificationType string     `gorm:"column:notification_type;size:50;not null"`       // 通知类型
	Title            string     `gorm:"column:title;size:255;not null"`                  // 通知标题
	Content          string     `gorm:"column:content;type:text"`                        // 通知正文
	Status           string     `gorm:"column:status;size:50;not null;index"`            // 投递状态
	SendTime         *time.Time `gorm:"column:send_time"`                                // 成功投递时间
	RetryCount       int        `gorm:"column:retry_count;not null;default:0"`           // 已尝试次数
	MaxRetries       int        `gorm:"column:max_retries;not null;default:3"`           // 最大尝试次数
	ErrorMessage     string     `gorm:"column:error_message;type:text"`                  // 最近一次失败原因
	IsDeleted        bool       `gorm:"column:is_deleted;not null;default:false;index"`  // 软删除标记
}

func (NotificationPo) TableName() string {
	return "booking_notifications"
}
