package orm

import (
	"fmt"
	"time"

	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/booking/scheduler/internal/infra/persistence/bookingrepo"
	"github.com/booking/scheduler/internal/infra/persistence/notificationrepo"
	"github.com/booking/scheduler/internal/infra/persistence/poweroffrepo"
	"github.com/booking/scheduler/internal/infra/persistence/roomrepo"
	"github.com/booking/scheduler/internal/infra/persistence/taskrepo"
	"github.com/booking/scheduler/internal/infra/persistence/userrepo"
)

var Provider = wire.NewSet(New)

type Config struct {
	Host                  string
	Port                  int
	Database              string
	User                  string
	Password              string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

type Storage struct {
	db *gorm.DB
}

func New(cfg Config) (*Storage, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Info),
		DisableForeignKeyConstraintWhenMigrating: true, // 禁用外键约束创建，保留关联关系
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	sqlDB.SetConnMaxLifetime(cfg.ConnectionMaxLifetime)

	// 自动迁移，预订/房间/用户表可能已由预订服务建好，迁移是幂等的
	if err := db.AutoMigrate(
		&bookingrepo.BookingPo{},
		&roomrepo.RoomPo{},
		&userrepo.UserPo{},
		&taskrepo.ScheduledTaskPo{},
		&notificationrepo.NotificationPo{},
		&poweroffrepo.PowerOffTaskPo{},
		&poweroffrepo.PowerOffAuditPo{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) DB() *gorm.DB {
	return s.db
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Storage) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
