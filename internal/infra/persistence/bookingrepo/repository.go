package bookingrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/wire"
	"gorm.io/gorm"

	domain "github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

var Provider = wire.NewSet(NewMysqlRepositoryImpl)

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlRepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.Booking, error) {
	var po BookingPo
	if err := r.Db(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain()
}

func (r *MysqlRepositoryImpl) FindConfirmedByUserAndRoom(ctx context.Context, userID, roomID uint64) ([]*domain.Booking, error) {
	var pos []BookingPo
	err := r.Db(ctx).
		Where("user_id = ? AND room_id = ? AND status = ?", userID, roomID, domain.StatusConfirmed).
		Order("start_time ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	bookings := make([]*domain.Booking, 0, len(pos))
	for i := range pos {
		b, err := pos[i].ToDomain()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// ToDomain 还原领域对象，持久化的枚举值非法时直接报错而不是静默兜底
func (po *BookingPo) ToDomain() (*domain.Booking, error) {
	status, err := domain.ParseStatus(po.Status)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", po.ID, err)
	}

	return &domain.Booking{
		ID:          po.ID,
		CreatedAt:   po.CreatedAt,
		UpdatedAt:   po.UpdatedAt,
		UserID:      po.UserID,
		RoomID:      po.RoomID,
		StartTime:   po.StartTime,
		EndTime:     po.EndTime,
		Status:      status,
		ContactName: po.ContactName,
	}, nil
}
