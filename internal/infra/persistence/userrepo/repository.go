package userrepo

import (
	"context"
	"errors"

	"github.com/google/wire"
	"gorm.io/gorm"

	domain "github.com/booking/scheduler/internal/biz/user"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

var Provider = wire.NewSet(NewMysqlRepositoryImpl)

// UserPo 用户行，用户管理属于其他服务，这里只读
type UserPo struct {
	commonrepo.Mode
	OpenID   string `gorm:"column:openid;size:100;not null;uniqueIndex"` // 消息投递地址
	Nickname string `gorm:"column:nickname;size:255"`
}

func (UserPo) TableName() string {
	return "users"
}

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlRepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.User, error) {
	var po UserPo
	if err := r.Db(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (po *UserPo) ToDomain() *domain.User {
	return &domain.User{
		ID:        po.ID,
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
		OpenID:    po.OpenID,
		Nickname:  po.Nickname,
	}
}
