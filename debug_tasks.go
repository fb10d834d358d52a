package main

import (
	"context"
	"fmt"
	"log"

	"github.com/davecgh/go-spew/spew"

	"github.com/booking/scheduler/internal/infra/persistence/notificationrepo"
	"github.com/booking/scheduler/internal/infra/persistence/taskrepo"
	"github.com/booking/scheduler/internal/orm"
	"github.com/booking/scheduler/pkg/config"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatal(err)
	}

	storage, err := orm.New(orm.Config{
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		Database:              cfg.Database.Database,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		MaxConnections:        cfg.Database.MaxConnections,
		MaxIdleConnections:    cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: cfg.Database.ConnectionMaxLifetime,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	var tasks []taskrepo.ScheduledTaskPo
	if err := storage.DB().WithContext(ctx).
		Where("status IN ? AND is_deleted = ?", []string{"pending", "running"}, false).
		Order("scheduled_time ASC").
		Find(&tasks).Error; err != nil {
		log.Fatal(err)
	}

	fmt.Printf("查询到 %d 个待执行任务:\n", len(tasks))
	for _, t := range tasks {
		fmt.Printf("ID: %d, TaskID: %s, Type: %s, Status: %s, ScheduledTime: %s, Retry: %d/%d\n",
			t.ID, t.TaskID, t.TaskType, t.Status,
			t.ScheduledTime.Format("2006-01-02 15:04:05"), t.RetryCount, t.MaxRetries)
	}

	var backlog int64
	if err := storage.DB().WithContext(ctx).
		Model(&notificationrepo.NotificationPo{}).
		Where("status IN ? AND retry_count < max_retries AND is_deleted = ?", []string{"pending", "retry"}, false).
		Count(&backlog).Error; err != nil {
		log.Fatal(err)
	}
	fmt.Printf("待投递通知积压: %d 条\n", backlog)

	var failed int64
	if err := storage.DB().WithContext(ctx).
		Model(&notificationrepo.NotificationPo{}).
		Where("status = ? AND is_deleted = ?", "failed", false).
		Count(&failed).Error; err != nil {
		log.Fatal(err)
	}
	fmt.Printf("投递失败通知: %d 条\n", failed)

	// 抽最近几条失败通知看完整字段
	var samples []notificationrepo.NotificationPo
	if err := storage.DB().WithContext(ctx).
		Where("status = ? AND is_deleted = ?", "failed", false).
		Order("updated_at DESC").
		Limit(3).
		Find(&samples).Error; err != nil {
		log.Fatal(err)
	}
	if len(samples) > 0 {
		spew.Dump(samples)
	}
}
