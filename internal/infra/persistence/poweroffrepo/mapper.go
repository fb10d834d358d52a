package poweroffrepo

import (
	"fmt"

	domain "github.com/booking/scheduler/internal/biz/poweroff"
)

// ToDomain 还原领域对象，持久化的枚举值非法时直接报错而不是静默兜底
func (po *PowerOffTaskPo) ToDomain() (*domain.PowerOffTask, error) {
	status, err := domain.ParseStatus(po.Status)
	if err != nil {
		return nil, fmt.Errorf("power off task %d: %w", po.ID, err)
	}

	return &domain.PowerOffTask{
		ID:            po.ID,
		CreatedAt:     po.CreatedAt,
		UpdatedAt:     po.UpdatedAt,
		BookingID:     po.BookingID,
		RoomID:        po.RoomID,
		ScheduledTime: po.ScheduledTime,
		ExecutedAt:    po.ExecutedAt,
		Status:        status,
	}, nil
}

func (po *PowerOffAuditPo) FromDomain(in *domain.AuditEntry) *PowerOffAuditPo {
	return &PowerOffAuditPo{
		ID:            in.ID,
		CreatedAt:     in.CreatedAt,
		BookingID:     in.BookingID,
		RoomID:        in.RoomID,
		OperationType: in.OperationType,
		Result:        string(in.Result),
		Details:       in.Details,
	}
}

func (po *PowerOffAuditPo) ToDomain() *domain.AuditEntry {
	return &domain.AuditEntry{
		ID:            po.ID,
		CreatedAt:     po.CreatedAt,
		BookingID:     po.BookingID,
		RoomID:        po.RoomID,
		OperationType: po.OperationType,
		Result:        domain.AuditResult(po.Result),
		Details:       po.Details,
	}
}
