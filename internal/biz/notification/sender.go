package notification

import "context"

// Sender 消息投递能力，具体传输由外部注入
type Sender interface {
	Deliver(ctx context.Context, userRef, title, content string) error
}
