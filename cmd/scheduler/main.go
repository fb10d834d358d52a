package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/yitter/idgenerator-go/idgen"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/api"
	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/notification"
	"github.com/booking/scheduler/internal/biz/poweroff"
	"github.com/booking/scheduler/internal/infra/persistence/bookingrepo"
	"github.com/booking/scheduler/internal/infra/persistence/notificationrepo"
	"github.com/booking/scheduler/internal/infra/persistence/poweroffrepo"
	"github.com/booking/scheduler/internal/infra/persistence/roomrepo"
	"github.com/booking/scheduler/internal/infra/persistence/taskrepo"
	"github.com/booking/scheduler/internal/infra/persistence/userrepo"
	"github.com/booking/scheduler/internal/notify"
	"github.com/booking/scheduler/internal/orm"
	"github.com/booking/scheduler/internal/relay"
	"github.com/booking/scheduler/internal/scheduler"
	"github.com/booking/scheduler/pkg/config"
	"github.com/booking/scheduler/pkg/logger"
)

func main() {
	// 解析命令行参数
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 雪花ID生成器，WorkerIdBitLength=6 最多支持64个节点
	var options = idgen.NewIdGeneratorOptions(20)
	options.BaseTime = 1735689600000 // 2025-01-01 00:00:00 UTC
	options.WorkerIdBitLength = 6
	idgen.SetIdGenerator(options)

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Scheduler.InstanceID == "" {
		cfg.Scheduler.InstanceID = "scheduler-" + uuid.NewString()[:8]
	}

	// 创建日志器
	output := cfg.Log.Output
	if output == "file" {
		output = cfg.Log.File
	}
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, output)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting booking scheduler",
		zap.String("instance_id", cfg.Scheduler.InstanceID))

	// 创建存储
	storageConfig := orm.Config{
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		Database:              cfg.Database.Database,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		MaxConnections:        cfg.Database.MaxConnections,
		MaxIdleConnections:    cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: cfg.Database.ConnectionMaxLifetime,
	}

	db, err := orm.New(storageConfig)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// 创建repositories
	taskRepo := taskrepo.NewMysqlRepositoryImpl(db.DB())
	bookingRepo := bookingrepo.NewMysqlRepositoryImpl(db.DB())
	roomRepo := roomrepo.NewMysqlRepositoryImpl(db.DB())
	userRepo := userrepo.NewMysqlRepositoryImpl(db.DB())
	notificationRepo := notificationrepo.NewMysqlRepositoryImpl(db.DB())
	powerOffRepo := poweroffrepo.NewMysqlRepositoryImpl(db.DB())
	auditRepo := poweroffrepo.NewMysqlAuditRepositoryImpl(db.DB())

	// 硬件客户端
	relayClient := relay.NewClient(cfg, zapLogger)
	gatewayClient := relay.NewGatewayClient(cfg, zapLogger)

	// 创建调度器
	checker := scheduler.NewHealthChecker(cfg, gatewayClient, zapLogger)
	runner := scheduler.NewRunner(cfg, zapLogger, taskRepo)
	sched, err := scheduler.New(cfg, db.DB(), zapLogger, runner, checker, taskRepo)
	if err != nil {
		zapLogger.Fatal("Failed to create scheduler", zap.Error(err))
	}

	rdb := ProvideRedisClient(cfg)
	bus := scheduler.NewEventBus(sched, rdb, zapLogger)

	// 业务用例
	sender := notify.NewSender(cfg, zapLogger)
	bookingUc := booking.NewUsecase(bookingRepo, cfg)
	notificationUc := notification.NewUsecase(notificationRepo, bookingRepo, roomRepo, userRepo, sender, sched, cfg, zapLogger)
	powerOffUc := poweroff.NewUsecase(powerOffRepo, auditRepo, bookingRepo, roomRepo, relayClient, sched, cfg, zapLogger)

	// API服务器
	doorHandler := api.NewDoorHandler(bookingUc, powerOffUc, gatewayClient, zapLogger)
	powerOffHandler := api.NewPowerOffHandler(powerOffUc, bookingUc, sched, zapLogger)
	taskHandler := api.NewTaskHandler(notificationUc, sched, zapLogger)
	notificationHandler := api.NewNotificationHandler(notificationUc, zapLogger)
	apiServer := api.NewServer(db, sched, checker, doorHandler, powerOffHandler, taskHandler, notificationHandler, zapLogger)

	app, err := NewApp(apiServer, sched, bus, notificationUc, powerOffUc)
	if err != nil {
		zapLogger.Fatal("Failed to assemble application", zap.Error(err))
	}

	// 启动调度器，重启恢复在这一步完成
	if err := app.Scheduler.Start(); err != nil {
		zapLogger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	app.Bus.Start()

	// 启动HTTP服务器
	httpServer := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        app.Server.Router(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		zapLogger.Info("Starting API server",
			zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("Shutting down...")

	// 先关HTTP入口，再停调度器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown API server", zap.Error(err))
	}

	app.Bus.Stop()
	if err := app.Scheduler.Stop(); err != nil {
		zapLogger.Error("Failed to stop scheduler", zap.Error(err))
	}

	zapLogger.Info("Shutdown complete")
}
