package user

import "context"

// Repo 用户仓储，本服务只读不写
type Repo interface {
	GetByID(ctx context.Context, id uint64) (*User, error)
}
