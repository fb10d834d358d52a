package roomrepo

import (
	"context"
	"errors"

	"github.com/google/wire"
	"gorm.io/gorm"

	domain "github.com/booking/scheduler/internal/biz/room"
	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
)

var Provider = wire.NewSet(NewMysqlRepositoryImpl)

// RoomPo 房间行，房间管理属于其他服务，这里只读
type RoomPo struct {
	commonrepo.Mode
	Name              string `gorm:"column:name;size:255;not null"`
	RelayControllerID string `gorm:"column:relay_controller_id;size:100"` // 继电器控制器编号，空表示未接电控
	RelayPort         int    `gorm:"column:relay_port;default:0"`         // 继电器端口号
	IsAvailable       bool   `gorm:"column:is_available;not null;default:true"`
}

func (RoomPo) TableName() string {
	return "rooms"
}

type MysqlRepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewMysqlRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &MysqlRepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *MysqlRepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.Room, error) {
	var po RoomPo
	if err := r.Db(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (po *RoomPo) ToDomain() *domain.Room {
	return &domain.Room{
		ID:                po.ID,
		CreatedAt:         po.CreatedAt,
		UpdatedAt:         po.UpdatedAt,
		Name:              po.Name,
		RelayControllerID: po.RelayControllerID,
		RelayPort:         po.RelayPort,
		IsAvailable:       po.IsAvailable,
	}
}
