package scheduler

import (
	"context"

	"github.com/booking/scheduler/internal/biz/task"
	"github.com/google/wire"
)

var Provider = wire.NewSet(
	New,
	NewRunner,
	NewEventBus,
	NewHealthChecker,
)

// Executor 任务执行回调，按任务类型注册到 Runner
type Executor interface {
	Execute(ctx context.Context, t *task.ScheduledTask) (string, error)
}

// GatewayProbe 网关探测与熔断复位能力
type GatewayProbe interface {
	Ping(ctx context.Context, gatewayID int) error
	ResetBreaker()
}
