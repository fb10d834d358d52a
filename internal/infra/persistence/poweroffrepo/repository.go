package poweroffrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/wire"
	"github.com/yitter/idgenerator-go/idgen"
	"gorm.io/gorm"

	domain "github.com/booking/scheduler/internal/biz/poweroff"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

var Provider = wire.NewSet(NewMysqlRepositoryImpl, NewMysqlAuditRepositoryImpl)

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

// Upsert 同一 (booking_id, room_id) 只保留一行，改期覆盖原行
func (r *MysqlRepositoryImpl) Upsert(ctx context.Context, bookingID, roomID uint64, scheduledTime time.Time) (*domain.PowerOffTask, error) {
	var po PowerOffTaskPo
	err := r.Execute(ctx, func(ctx context.Context) error {
		err := r.Db(ctx).Where("booking_id = ? AND room_id = ?", bookingID, roomID).First(&po).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			po = PowerOffTaskPo{
				Mode:          commonrepo.Mode{ID: uint64(idgen.NextId())},
				BookingID:     bookingID,
				RoomID:        roomID,
				ScheduledTime: scheduledTime,
				Status:        string(domain.StatusScheduled),
			}
			return r.Db(ctx).Create(&po).Error
		}
		if err != nil {
			return err
		}

		values := map[string]any{
			"scheduled_time": scheduledTime,
			"executed_at":    nil,
			"status":         string(domain.StatusScheduled),
		}
		if err := r.Db(ctx).Model(&PowerOffTaskPo{}).Where("id = ?", po.ID).Updates(values).Error; err != nil {
			return err
		}
		po.ScheduledTime = scheduledTime
		po.ExecutedAt = nil
		po.Status = string(domain.StatusScheduled)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return po.ToDomain()
}

func (r *MysqlRepositoryImpl) UpdateStatusByKey(ctx context.Context, bookingID, roomID uint64, status domain.Status, executedAt *time.Time) error {
	values := map[string]any{
		"status": string(status),
	}
	if executedAt != nil {
		values["executed_at"] = *executedAt
	}
	return r.Db(ctx).Model(&PowerOffTaskPo{}).
		Where("booking_id = ? AND room_id = ?", bookingID, roomID).
		Updates(values).Error
}

func (r *MysqlRepositoryImpl) List(ctx context.Context, filter *domain.Filter, page, size int) ([]*domain.PowerOffTask, int64, error) {
	query := r.Db(ctx).Model(&PowerOffTaskPo{})
	if filter.BookingID.IsPresent() {
		query = query.Where("booking_id = ?", filter.BookingID.MustGet())
	}
	if filter.RoomID.IsPresent() {
		query = query.Where("room_id = ?", filter.RoomID.MustGet())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var pos []PowerOffTaskPo
	err := query.
		Order("scheduled_time DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&pos).Error
	if err != nil {
		return nil, 0, err
	}

	tasks := make([]*domain.PowerOffTask, 0, len(pos))
	for i := range pos {
		t, err := pos[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	return tasks, total, nil
}

type MysqlAuditRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlAuditRepositoryImpl(db commonrepo.DB) domain.AuditRepo {
	return &MysqlAuditRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlAuditRepositoryImpl) Append(ctx context.Context, entry *domain.AuditEntry) error {
	po := new(PowerOffAuditPo).FromDomain(entry)
	if err := r.Db(ctx).Create(po).Error; err != nil {
		return err
	}
	entry.ID = po.ID
	entry.CreatedAt = po.CreatedAt
	return nil
}

func (r *MysqlAuditRepositoryImpl) List(ctx context.Context, filter *domain.AuditFilter) ([]*domain.AuditEntry, error) {
	query := r.Db(ctx).Model(&PowerOffAuditPo{})
	if filter.BookingID.IsPresent() {
		query = query.Where("booking_id = ?", filter.BookingID.MustGet())
	}
	if filter.RoomID.IsPresent() {
		query = query.Where("room_id = ?", filter.RoomID.MustGet())
	}

	var pos []PowerOffAuditPo
	if err := query.Order("created_at DESC").Limit(filter.Limit).Find(&pos).Error; err != nil {
		return nil, err
	}

	entries := make([]*domain.AuditEntry, 0, len(pos))
	for i := range pos {
		entries = append(entries, pos[i].ToDomain())
	}
	return entries, nil
}
