package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	LockLocal = "local"
	LockRedis = "redis"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	Path         string `mapstructure:"path"` // sqlite 文件路径，支持 file::memory:
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

// LedgerConfig 余额变更相关配置
type LedgerConfig struct {
	Lock              string        `mapstructure:"lock"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockRetryInterval time.Duration `mapstructure:"lock_retry_interval"`
	LockMaxRetries    int           `mapstructure:"lock_max_retries"`
}

// RealtimeConfig 聊天 websocket 配置
type RealtimeConfig struct {
	Path            string        `mapstructure:"path"`
	SendQueueSize   int           `mapstructure:"send_queue_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
	RateLimit       float64       `mapstructure:"rate_limit"` // 每秒事件数，0 表示不限
	RateBurst       int           `mapstructure:"rate_burst"`
}

type StatsConfig struct {
	DRCPrice      float64 `mapstructure:"drc_price"`
	PreviousPrice float64 `mapstructure:"previous_price"`
}

type OutboxConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxRetryCount int           `mapstructure:"max_retry_count"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "nexus.db")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.name", "nexus")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.topic.ledger_events", "nexus.ledger.events")

	v.SetDefault("ledger.lock", LockLocal)
	v.SetDefault("ledger.lock_ttl", 30*time.Second)
	v.SetDefault("ledger.lock_retry_interval", 50*time.Millisecond)
	v.SetDefault("ledger.lock_max_retries", 0)

	v.SetDefault("realtime.path", "/ws")
	v.SetDefault("realtime.send_queue_size", 256)
	v.SetDefault("realtime.write_timeout", 10*time.Second)
	v.SetDefault("realtime.pong_timeout", 60*time.Second)
	v.SetDefault("realtime.ping_interval", 54*time.Second)
	v.SetDefault("realtime.max_message_bytes", 4096)
	v.SetDefault("realtime.rate_limit", 0)
	v.SetDefault("realtime.rate_burst", 10)

	v.SetDefault("stats.drc_price", 0.001)
	v.SetDefault("stats.previous_price", 0.0009)

	v.SetDefault("outbox.interval", 100*time.Millisecond)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retry_count", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load 加载配置文件
// 顺序：默认值 < 配置文件 < 环境变量（NEXUS_ 前缀，.env 文件先载入环境）
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置组合是否合法
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}

	switch c.Ledger.Lock {
	case LockLocal:
	case LockRedis:
		if !c.Redis.Enabled {
			return errors.New("ledger.lock=redis 需要开启 redis.enabled")
		}
	default:
		return fmt.Errorf("不支持的锁类型: %q", c.Ledger.Lock)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.enabled 需要配置 kafka.brokers")
	}

	if c.Realtime.SendQueueSize <= 0 {
		return errors.New("realtime.send_queue_size 必须大于0")
	}
	return nil
}

// LedgerEventsTopic 开启 kafka 时返回账本事件 topic，否则返回空串
func (c *Config) LedgerEventsTopic() string {
	if !c.Kafka.Enabled {
		return ""
	}
	return c.Kafka.Topic.LedgerEvents
}
