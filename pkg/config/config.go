package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	HealthCheck  HealthCheckConfig  `mapstructure:"health_check"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Relay        RelayConfig        `mapstructure:"relay"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Notification NotificationConfig `mapstructure:"notification"`
	Access       AccessConfig       `mapstructure:"access"`
}

type SchedulerConfig struct {
	InstanceID        string        `mapstructure:"instance_id"`
	Cluster           bool          `mapstructure:"cluster"`
	LockKey           string        `mapstructure:"lock_key"`
	LockTimeout       time.Duration `mapstructure:"lock_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MaxWorkers        int           `mapstructure:"max_workers"`
}

type HealthCheckConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Interval          time.Duration `mapstructure:"interval"`
	Timeout           time.Duration `mapstructure:"timeout"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	RecoveryThreshold int           `mapstructure:"recovery_threshold"`
}

type DatabaseConfig struct {
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	Database              string        `mapstructure:"database"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	File   string `mapstructure:"file"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RelayConfig 继电器硬件（房间电源）控制配置
type RelayConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	PowerOffBuffer time.Duration `mapstructure:"power_off_buffer"`
}

// GatewayConfig 门禁网关配置，DoorMap 为门ID到网关继电器ID的映射
type GatewayConfig struct {
	BaseURL string         `mapstructure:"base_url"`
	Timeout time.Duration  `mapstructure:"timeout"`
	DoorMap map[string]int `mapstructure:"door_map"`
}

// NotifyConfig 消息推送通道配置，Endpoint 为空时仅记录日志
type NotifyConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type NotificationConfig struct {
	BatchSize     int `mapstructure:"batch_size"`
	MaxRetries    int `mapstructure:"max_retries"`
	RetentionDays int `mapstructure:"retention_days"`
}

// AccessConfig 开门校验配置，EarlyWindow 为预订开始前允许开门的提前量
type AccessConfig struct {
	EarlyWindow time.Duration `mapstructure:"early_window"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 设置默认值
	viper.SetDefault("scheduler.instance_id", "")
	viper.SetDefault("scheduler.cluster", false)
	viper.SetDefault("scheduler.lock_key", "booking_scheduler_leader_lock")
	viper.SetDefault("scheduler.lock_timeout", "30s")
	viper.SetDefault("scheduler.heartbeat_interval", "10s")
	viper.SetDefault("scheduler.max_workers", 10)

	viper.SetDefault("health_check.enabled", false)
	viper.SetDefault("health_check.interval", "30s")
	viper.SetDefault("health_check.timeout", "5s")
	viper.SetDefault("health_check.failure_threshold", 3)
	viper.SetDefault("health_check.recovery_threshold", 2)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.database", "booking")
	viper.SetDefault("database.user", "root")
	viper.SetDefault("database.max_connections", 20)
	viper.SetDefault("database.max_idle_connections", 10)
	viper.SetDefault("database.connection_max_lifetime", "1h")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.max_header_bytes", 1048576)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("relay.base_url", "http://192.168.1.100")
	viper.SetDefault("relay.timeout", "10s")
	viper.SetDefault("relay.max_retries", 3)
	viper.SetDefault("relay.retry_delay", "5s")
	viper.SetDefault("relay.power_off_buffer", "40m")

	viper.SetDefault("gateway.base_url", "https://3e.upon.ltd")
	viper.SetDefault("gateway.timeout", "10s")
	// 门ID -> 网关继电器ID，来自现场布线
	viper.SetDefault("gateway.door_map", map[string]int{
		"9": 7, "10": 6, "11": 8, "12": 5, "14": 1, "15": 2, "16": 3,
	})

	viper.SetDefault("notify.endpoint", "")
	viper.SetDefault("notify.timeout", "10s")

	viper.SetDefault("notification.batch_size", 50)
	viper.SetDefault("notification.max_retries", 3)
	viper.SetDefault("notification.retention_days", 30)

	viper.SetDefault("access.early_window", "1h")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
