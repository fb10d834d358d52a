package room

import "context"

// Repo 房间仓储，本服务只读不写
type Repo interface {
	GetByID(ctx context.Context, id uint64) (*Room, error)
}
