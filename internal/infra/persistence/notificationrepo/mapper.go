package notificationrepo

import (
	"fmt"

	domain "github.com/booking/scheduler/internal/biz/notification"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

func (po *NotificationPo) FromDomain(in *domain.Notification) *NotificationPo {
	return &NotificationPo{
		Mode: commonrepo.Mode{
			ID:        in.ID,
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
		},
		BookingID:        in.BookingID,
		UserID:           in.UserID,
		NotificationType: string(in.Type),
		Title:            in.Title,
		Content:          in.Content,
		Status:           string(in.Status),
		SendTime:         in.SendTime,
		RetryCount:       in.RetryCount,
		MaxRetries:       in.MaxRetries,
		ErrorMessage:     in.ErrorMessage,
		IsDeleted:        in.IsDeleted,
	}
}

// ToDomain 还原领域对象，持久化的枚举值非法时直接报错而不是静默兜底
func (po *NotificationPo) ToDomain() (*domain.Notification, error) {
	notificationType, err := domain.ParseType(po.NotificationType)
	if err != nil {
		return nil, fmt.Errorf("notification %d: %w", po.ID, err)
	}
	status, err := domain.ParseStatus(po.Status)
	if err != nil {
		return nil, fmt.Errorf("notification %d: %w", po.ID, err)
	}

	return &domain.Notification{
		ID:           po.ID,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
		BookingID:    po.BookingID,
		UserID:       po.UserID,
		Type:         notificationType,
		Title:        po.Title,
		Content:      po.Content,
		Status:       status,
		SendTime:     po.SendTime,
		RetryCount:   po.RetryCount,
		MaxRetries:   po.MaxRetries,
		ErrorMessage: po.ErrorMessage,
		IsDeleted:    po.IsDeleted,
	}, nil
}

func patchToMap(input *domain.Patch) map[string]any {
	var values = make(map[string]any)

	if input.Status != nil {
		values["status"] = string(*input.Status)
	}

	if input.SendTime != nil {
		values["send_time"] = *input.SendTime
	}

	if input.RetryCount != nil {
		values["retry_count"] = *input.RetryCount
	}

	if input.ErrorMessage != nil {
		values["error_message"] = *input.ErrorMessage
	}

	if input.IsDeleted != nil {
		values["is_deleted"] = *input.IsDeleted
	}

	return values
}
