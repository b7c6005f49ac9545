package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	StorageMemory = "memory"
	StorageMySQL  = "mysql"
	StorageSQLite = "sqlite"

	EventsLocal = "local"
	EventsRedis = "redis"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Events    EventsConfig    `mapstructure:"events"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Bidding   BiddingConfig   `mapstructure:"bidding"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type EventsConfig struct {
	Driver  string `mapstructure:"driver"`
	Channel string `mapstructure:"channel"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	Key string        `mapstructure:"key"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type BiddingConfig struct {
	MinIncrement        decimal.Decimal `mapstructure:"min_increment"`
	MaxBidderNameLength int             `mapstructure:"max_bidder_name_length"`
}

type SchedulerConfig struct {
	Spec string `mapstructure:"spec"`
}

type WebSocketConfig struct {
	SendBuffer     int           `mapstructure:"send_buffer"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("sqlite.path", "./data/auctions.db")
	v.SetDefault("events.driver", EventsLocal)
	v.SetDefault("events.channel", "auction_events")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("leader.key", "auction_leader")
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("bidding.min_increment", "50")
	v.SetDefault("bidding.max_bidder_name_length", 64)
	v.SetDefault("scheduler.spec", "@every 1s")
	v.SetDefault("websocket.send_buffer", 64)
	v.SetDefault("websocket.write_wait", 10*time.Second)
	v.SetDefault("websocket.pong_wait", 60*time.Second)
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	// Environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func Load() (*Config, error) {
	v := newViper()

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/live-auction/")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return decode(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		decimalHookFunc(),
	)))
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// decimalHookFunc decodes strings and numbers into decimal.Decimal.
func decimalHookFunc() mapstructure.DecodeHookFuncType {
	decimalType := reflect.TypeOf(decimal.Decimal{})
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		}
		return data, nil
	}
}

// Keepalive and lease renewal tick at a fraction of these durations.
const (
	minPongWait  = time.Second
	minLeaderTTL = time.Second
)

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageMySQL, StorageSQLite:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Events.Driver {
	case EventsLocal, EventsRedis:
	default:
		return fmt.Errorf("config: unknown events driver %q", c.Events.Driver)
	}

	if !c.Bidding.MinIncrement.IsPositive() {
		return fmt.Errorf("config: bidding.min_increment must be positive, got %s", c.Bidding.MinIncrement)
	}
	if c.Bidding.MaxBidderNameLength <= 0 {
		return fmt.Errorf("config: bidding.max_bidder_name_length must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("config: websocket.send_buffer must be positive")
	}
	if c.WebSocket.WriteWait <= 0 {
		return fmt.Errorf("config: websocket.write_wait must be positive, got %s", c.WebSocket.WriteWait)
	}
	if c.WebSocket.PongWait < minPongWait {
		return fmt.Errorf("config: websocket.pong_wait must be at least %s, got %s", minPongWait, c.WebSocket.PongWait)
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("config: websocket.max_message_size must be positive")
	}
	if c.Events.Driver == EventsRedis && c.Leader.TTL < minLeaderTTL {
		return fmt.Errorf("config: leader.ttl must be at least %s, got %s", minLeaderTTL, c.Leader.TTL)
	}

	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Storage: %s, Events: %s, Redis: %s, Instance: %s, MinIncrement: %s",
		c.Server.Host,
		c.Server.Port,
		c.Storage.Driver,
		c.Events.Driver,
		c.Redis.Address,
		c.Instance.ID,
		c.Bidding.MinIncrement,
	)
}
