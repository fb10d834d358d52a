package taskrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/wire"
	"gorm.io/gorm"

	domain "github.com/booking/scheduler/internal/biz/task"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

var Provider = wire.NewSet(NewMysqlRepositoryImpl)

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlRepositoryImpl) Create(ctx context.Context, t *domain.ScheduledTask) error {
	po := new(ScheduledTaskPo).FromDomain(t)
	if err := r.Db(ctx).Create(po).Error; err != nil {
		return err
	}
	t.ID = po.ID
	t.CreatedAt = po.CreatedAt
	t.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *MysqlRepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.ScheduledTask, error) {
	var po ScheduledTaskPo
	if err := r.Db(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain()
}

func (r *MysqlRepositoryImpl) GetActiveByTaskID(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	var po ScheduledTaskPo
	err := r.Db(ctx).
		Where("task_id = ? AND status = ? AND is_deleted = ?", taskID, domain.StatusPending, false).
		First(&po).Error
	if err != nil {
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
	return r.Db(ctx).Model(&ScheduledTaskPo{}).Where("id = ?", id).Updates(values).Error
}

func (r *MysqlRepositoryImpl) List(ctx context.Context, filter *domain.Filter) ([]*domain.ScheduledTask, error) {
	query := r.Db(ctx).Model(&ScheduledTaskPo{})
	if filter.Type.IsPresent() {
		query = query.Where("task_type = ?", filter.Type.MustGet())
	}
	if filter.Status.IsPresent() {
		query = query.Where("status = ?", filter.Status.MustGet())
	}
	if filter.Ref.IsPresent() {
		ref := filter.Ref.MustGet()
		query = query.Where("related_type = ? AND related_id = ?", ref.Kind, ref.ID)
	}

	var pos []ScheduledTaskPo
	if err := query.Order("scheduled_time ASC").Find(&pos).Error; err != nil {
		return nil, err
	}
	return toDomainList(pos)
}

func (r *MysqlRepositoryImpl) FindByRef(ctx context.Context, ref domain.Ref) ([]*domain.ScheduledTask, error) {
	var pos []ScheduledTaskPo
	err := r.Db(ctx).
		Where("related_type = ? AND related_id = ? AND is_deleted = ?", ref.Kind, ref.ID, false).
		Order("created_at DESC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(pos)
}

func (r *MysqlRepositoryImpl) FindRecoverable(ctx context.Context) ([]*domain.ScheduledTask, error) {
	var pos []ScheduledTaskPo
	err := r.Db(ctx).
		Where("status IN ? AND is_deleted = ?", []string{string(domain.StatusPending), string(domain.StatusFailed)}, false).
		Order("scheduled_time ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(pos)
}

func (r *MysqlRepositoryImpl) MarkRunning(ctx context.Context, id uint64, executedTime time.Time) (bool, error) {
	res := r.Db(ctx).Model(&ScheduledTaskPo{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":        string(domain.StatusRunning),
			"executed_time": executedTime,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MysqlRepositoryImpl) CancelPending(ctx context.Context, taskID string) (bool, error) {
	res := r.Db(ctx).Model(&ScheduledTaskPo{}).
		Where("task_id = ? AND status = ? AND is_deleted = ?", taskID, domain.StatusPending, false).
		Updates(map[string]any{
			"status": string(domain.StatusCancelled),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MysqlRepositoryImpl) FailPending(ctx context.Context, id uint64, message string) (bool, error) {
	res := r.Db(ctx).Model(&ScheduledTaskPo{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":        string(domain.StatusFailed),
			"error_message": message,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MysqlRepositoryImpl) RequeueFailed(ctx context.Context, id uint64) (bool, error) {
	res := r.Db(ctx).Model(&ScheduledTaskPo{}).
		Where("id = ? AND status = ?", id, domain.StatusFailed).
		Updates(map[string]any{
			"status":      string(domain.StatusPending),
			"retry_count": gorm.Expr("retry_count + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func toDomainList(pos []ScheduledTaskPo) ([]*domain.ScheduledTask, error) {
	tasks := make([]*domain.ScheduledTask, 0, len(pos))
	for i := range pos {
		t, err := pos[i].ToDomain()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
