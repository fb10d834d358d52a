package room

import "time"

// Room 房间实体，本服务只读
type Room struct {
	ID                uint64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Name              string
	RelayControllerID string // 继电器控制器编号
	RelayPort         int    // 控制器上的端口号
	IsAvailable       bool
}

// HasRelay 是否配置了断电继电器
func (r *Room) HasRelay() bool {
	return r.RelayControllerID != "" && r.RelayPort > 0
}
