package taskrepo

import (
	"fmt"

	domain "github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
	"gorm.io/datatypes"
)

func (po *ScheduledTaskPo) FromDomain(in *domain.ScheduledTask) *ScheduledTaskPo {
	return &ScheduledTaskPo{
		Mode: commonrepo.Mode{
			ID:        in.ID,
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
		},
		TaskID:        in.TaskID,
		TaskType:      string(in.Type),
		RelatedType:   string(in.Ref.Kind),
		RelatedID:     in.Ref.ID,
		Title:         in.Title,
		Description:   in.Description,
		Payload:       datatypes.JSONMap(in.Payload),
		ScheduledTime: in.ScheduledTime,
		ExecutedTime:  in.ExecutedTime,
		Status:        string(in.Status),
		Result:        in.Result,
		ErrorMessage:  in.ErrorMessage,
		RetryCount:    in.RetryCount,
		MaxRetries:    in.MaxRetries,
		IsDeleted:     in.IsDeleted,
	}
}

// ToDomain 还原领域对象，持久化的枚举值非法时直接报错而不是静默兜底
func (po *ScheduledTaskPo) ToDomain() (*domain.ScheduledTask, error) {
	taskType, err := domain.ParseType(po.TaskType)
	if err != nil {
		return nil, fmt.Errorf("scheduled task %d: %w", po.ID, err)
	}
	status, err := domain.ParseStatus(po.Status)
	if err != nil {
		return nil, fmt.Errorf("scheduled task %d: %w", po.ID, err)
	}
	refKind, err := domain.ParseRefKind(po.RelatedType)
	if err != nil {
		return nil, fmt.Errorf("scheduled task %d: %w", po.ID, err)
	}

	return &domain.ScheduledTask{
		ID:            po.ID,
		CreatedAt:     po.CreatedAt,
		UpdatedAt:     po.UpdatedAt,
		TaskID:        po.TaskID,
		Type:          taskType,
		Ref:           domain.Ref{Kind: refKind, ID: po.RelatedID},
		Title:         po.Title,
		Description:   po.Description,
		Payload:       map[string]any(po.Payload),
		ScheduledTime: po.ScheduledTime,
		ExecutedTime:  po.ExecutedTime,
		Status:        status,
		Result:        po.Result,
		ErrorMessage:  po.ErrorMessage,
		RetryCount:    po.RetryCount,
		MaxRetries:    po.MaxRetries,
		IsDeleted:     po.IsDeleted,
	}, nil
}

func patchToMap(input *domain.Patch) map[string]any {
	var values = make(map[string]any)

	if input.Status != nil {
		values["status"] = string(*input.Status)
	}

	if input.Result != nil {
		values["result"] = *input.Result
	}

	if input.ErrorMessage != nil {
		values["error_message"] = *input.ErrorMessage
	}

	if input.ScheduledTime != nil {
		values["scheduled_time"] = *input.ScheduledTime
	}

	if input.ExecutedTime != nil {
		values["executed_time"] = *input.ExecutedTime
	}

	if input.RetryCount != nil {
		values["retry_count"] = *input.RetryCount
	}

	if input.IsDeleted != nil {
		values["is_deleted"] = *input.IsDeleted
	}

	return values
}
