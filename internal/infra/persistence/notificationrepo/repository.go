package notificationrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/wire"
	"gorm.io/gorm"

	domain "github.com/booking/scheduler/internal/biz/notification"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

var Provider = wire.NewSet(NewMysqlRepositoryImpl)

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlRepositoryImpl) Create(ctx context.Context, n *domain.Notification) error {
	po := new(NotificationPo).FromDomain(n)
	if err := r.Db(ctx).Create(po).Error; err != nil {
		return err
	}
	n.ID = po.ID
	n.CreatedAt = po.CreatedAt
	n.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *MysqlRepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.Notification, error) {
	var po NotificationPo
	if err := r.Db(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain()
}

func (r *MysqlRepositoryImpl) Update(ctx context.Context, id uint64, patch *domain.Patch) error {
	values := patchToMap(patch)
	if len(values) == 0 {
		return nil
	}
	return r.Db(ctx).Model(&NotificationPo{}).Where("id = ?", id).Updates(values).Error
}

func (r *MysqlRepositoryImpl) FindSendable(ctx context.Context, limit int) ([]*domain.Notification, error) {
	var pos []NotificationPo
	err := r.Db(ctx).
		Where("status IN ? AND retry_count < max_retries AND is_deleted = ?",
			[]string{string(domain.StatusPending), string(domain.StatusRetry)}, false).
		Order("created_at ASC").
		Limit(limit).
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(pos)
}

func (r *MysqlRepositoryImpl) FindByBooking(ctx context.Context, bookingID uint64) ([]*domain.Notification, error) {
	var pos []NotificationPo
	err := r.Db(ctx).
		Where("booking_id = ? AND is_deleted = ?", bookingID, false).
		Order("created_at DESC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(pos)
}

func (r *MysqlRepositoryImpl) FindByUser(ctx context.Context, userID uint64, limit int) ([]*domain.Notification, error) {
	var pos []NotificationPo
	err := r.Db(ctx).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(pos)
}

func (r *MysqlRepositoryImpl) RetryFailed(ctx context.Context) (int64, error) {
	res := r.Db(ctx).Model(&NotificationPo{}).
		Where("status = ? AND retry_count < max_retries AND is_deleted = ?", domain.StatusFailed, false).
		Updates(map[string]any{
			"status": string(domain.StatusRetry),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *MysqlRepositoryImpl) SoftDeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res := r.Db(ctx).Model(&NotificationPo{}).
		Where("created_at < ? AND is_deleted = ?", before, false).
		Updates(map[string]any{
			"is_deleted": true,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func toDomainList(pos []NotificationPo) ([]*domain.Notification, error) {
	notifications := make([]*domain.Notification, 0, len(pos))
	for i := range pos {
		n, err := pos[i].ToDomain()
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}
