package user

import "time"

// User 用户实体，本服务只读
type User struct {
	ID        uint64
	CreatedAt time.Time
	UpdatedAt time.Time
	OpenID    string // 消息投递标识
	Nickname  string
}
