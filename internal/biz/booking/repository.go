package booking

import "context"

// Repo 预订仓储，本服务只读不写
type Repo interface {
	GetByID(ctx context.Context, id uint64) (*Booking, error)
	// FindConfirmedByUserAndRoom 查询用户在指定房间的全部已确认预订
	FindConfirmedByUserAndRoom(ctx context.Context, userID, roomID uint64) ([]*Booking, error)
}
