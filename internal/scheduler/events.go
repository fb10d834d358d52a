package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EventType 集群事件类型
type EventType string

const (
	// EventTaskScheduled 任务已编排（新建或改期）
	EventTaskScheduled EventType = "task_scheduled"
	// EventTaskCancelled 任务已取消
	EventTaskCancelled EventType = "task_cancelled"
)

// redisChannel 集群事件广播频道
const redisChannel = "booking-scheduler:events"

// RedisEvent 跨实例广播的任务变更事件
type RedisEvent struct {
	Type      EventType `json:"type"`
	RowID     uint64    `json:"row_id,omitempty"`
	TaskID    string    `json:"task_id"`
	RunAt     int64     `json:"run_at,omitempty"`
	Source    string    `json:"source"`
	Timestamp int64     `json:"timestamp"`
}

// EventBus 基于Redis Pub/Sub的集群事件总线
// rdb为nil时退化为单机模式，发布和订阅都是空操作
type EventBus struct {
	scheduler *Scheduler
	rdb       *redis.Client
	logger    *zap.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewEventBus 创建事件总线
func NewEventBus(scheduler *Scheduler, rdb *redis.Client, logger *zap.Logger) *EventBus {
	return &EventBus{
		scheduler: scheduler,
		rdb:       rdb,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start 启动订阅循环
func (b *EventBus) Start() {
	if b.rdb == nil {
		b.logger.Info("event bus running in standalone mode, redis disabled")
		return
	}

	b.wg.Add(1)
	go b.subscribe()
}

// Stop 停止订阅循环
func (b *EventBus) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}

func (b *EventBus) subscribe() {
	defer b.wg.Done()

	pubsub := b.rdb.Subscribe(context.Background(), redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	b.logger.Info("subscribed to scheduler events", zap.String("channel", redisChannel))

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("event subscription channel closed")
				return
			}
			b.handle(msg.Payload)
		case <-b.stopCh:
			return
		}
	}
}

func (b *EventBus) handle(payload string) {
	var event RedisEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		b.logger.Warn("failed to decode scheduler event",
			zap.String("payload", payload),
			zap.Error(err))
		return
	}

	// 自己发出的事件在本地已经处理过
	if event.Source == b.scheduler.instanceID {
		return
	}

	switch event.Type {
	case EventTaskScheduled:
		b.scheduler.armRemote(event.RowID, event.TaskID, time.Unix(event.RunAt, 0))
	case EventTaskCancelled:
		b.scheduler.disarmRemote(event.TaskID)
	default:
		b.logger.Warn("unknown scheduler event type", zap.String("type", string(event.Type)))
	}
}

func (b *EventBus) publish(ctx context.Context, event RedisEvent) {
	if b.rdb == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to encode scheduler event", zap.Error(err))
		return
	}

	if err := b.rdb.Publish(ctx, redisChannel, data).Err(); err != nil {
		b.logger.Error("failed to publish scheduler event",
			zap.String("type", string(event.Type)),
			zap.String("task_id", event.TaskID),
			zap.Error(err))
	}
}
