package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/wfunc/wager-engine/internal/errors"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Game      GameConfig      `mapstructure:"game"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
	System    SystemConfig    `mapstructure:"system"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path              string        `mapstructure:"path"`
	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
}

// RedisConfig Redis配置，用于在线状态存储
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GameConfig 游戏配置
type GameConfig struct {
	Room   RoomConfig   `mapstructure:"room"`
	Turn   TurnConfig   `mapstructure:"turn"`
	Race   RaceConfig   `mapstructure:"race"`
	Holdem HoldemConfig `mapstructure:"holdem"`
}

// RoomConfig 房间配置
type RoomConfig struct {
	RaceSeatCounts    []int         `mapstructure:"race_seat_counts"`
	HoldemSeatCounts  []int         `mapstructure:"holdem_seat_counts"`
	MinEntryFee       int64         `mapstructure:"min_entry_fee"`
	MaxEntryFee       int64         `mapstructure:"max_entry_fee"`
	CommissionBps     int           `mapstructure:"commission_bps"`
	FillTimeout       time.Duration `mapstructure:"fill_timeout"`
	FillPolicy        string        `mapstructure:"fill_policy"` // cancel | bots
	BotDifficulty     string        `mapstructure:"bot_difficulty"`
	HouseAccount      string        `mapstructure:"house_account"`
	CommissionAccount string        `mapstructure:"commission_account"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// TurnConfig 回合与在线配置
type TurnConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	DisconnectAfter time.Duration `mapstructure:"disconnect_after"`
	BotDelay        time.Duration `mapstructure:"bot_delay"`
}

// RaceConfig 飞行棋规则配置
type RaceConfig struct {
	SafeSquares         []int `mapstructure:"safe_squares"`
	MaxConsecutiveSixes int   `mapstructure:"max_consecutive_sixes"`
}

// HoldemConfig 德州扑克规则配置
type HoldemConfig struct {
	StartingStack int64 `mapstructure:"starting_stack"`
	SmallBlind    int64 `mapstructure:"small_blind"`
	BigBlind      int64 `mapstructure:"big_blind"`
	MinBet        int64 `mapstructure:"min_bet"`
	MaxHands      int   `mapstructure:"max_hands"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	Timezone string `mapstructure:"timezone"`
	MaxProcs int    `mapstructure:"max_procs"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// WAGER_GAME_TURN_TIMEOUT -> game.turn.timeout
		v.SetEnvPrefix("WAGER")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		setDefaults(v)

		if err = v.ReadInConfig(); err != nil {
			// 配置文件不存在时使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				err = errors.Wrap(err, errors.ErrConfigLoad)
				return
			}
			err = nil
		}

		loaded := &Config{}
		if err = v.Unmarshal(loaded); err != nil {
			err = errors.Wrap(err, errors.ErrConfigParse)
			return
		}
		if err = loaded.Validate(); err != nil {
			return
		}
		cfg = loaded
	})

	return err
}

// Load 从指定viper实例解析配置，不影响全局单例
func Load(src *viper.Viper) (*Config, error) {
	setDefaults(src)
	loaded := &Config{}
	if err := src.Unmarshal(loaded); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse)
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}

// Default 返回全部使用默认值的配置
func Default() *Config {
	c, err := Load(viper.New())
	if err != nil {
		panic(err)
	}
	return c
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/wager-engine.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.enable_compression", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("game.room.race_seat_counts", []int{2, 3, 4})
	v.SetDefault("game.room.holdem_seat_counts", []int{2, 3, 4, 5, 6})
	v.SetDefault("game.room.min_entry_fee", 10)
	v.SetDefault("game.room.max_entry_fee", 100000)
	v.SetDefault("game.room.commission_bps", 1000)
	v.SetDefault("game.room.fill_timeout", "2m")
	v.SetDefault("game.room.fill_policy", "cancel")
	v.SetDefault("game.room.bot_difficulty", "normal")
	v.SetDefault("game.room.house_account", "house")
	v.SetDefault("game.room.commission_account", "commission")
	v.SetDefault("game.room.max_retries", 3)

	v.SetDefault("game.turn.timeout", "30s")
	v.SetDefault("game.turn.sweep_interval", "1s")
	v.SetDefault("game.turn.disconnect_after", "15s")
	v.SetDefault("game.turn.bot_delay", "1s")

	v.SetDefault("game.race.safe_squares", []int{0, 8, 13, 21, 26, 34, 39, 47})
	v.SetDefault("game.race.max_consecutive_sixes", 3)

	v.SetDefault("game.holdem.starting_stack", 1000)
	v.SetDefault("game.holdem.small_blind", 10)
	v.SetDefault("game.holdem.big_blind", 20)
	v.SetDefault("game.holdem.min_bet", 20)
	v.SetDefault("game.holdem.max_hands", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "wager-engine.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("security.jwt.secret", "change-me")
	v.SetDefault("security.jwt.expire_hours", 24)
	v.SetDefault("security.jwt.refresh_hours", 168)

	v.SetDefault("system.timezone", "UTC")
}

// Validate 校验配置取值范围
func (c *Config) Validate() error {
	room := c.Game.Room
	if room.MinEntryFee <= 0 || room.MaxEntryFee < room.MinEntryFee {
		return errors.Newf(errors.ErrConfigValidate, "entry fee range [%d, %d]", room.MinEntryFee, room.MaxEntryFee)
	}
	if room.CommissionBps < 0 || room.CommissionBps > 10000 {
		return errors.Newf(errors.ErrConfigValidate, "commission_bps %d", room.CommissionBps)
	}
	if room.FillPolicy != "cancel" && room.FillPolicy != "bots" {
		return errors.Newf(errors.ErrConfigValidate, "fill_policy %q", room.FillPolicy)
	}
	if len(room.RaceSeatCounts) == 0 || len(room.HoldemSeatCounts) == 0 {
		return errors.New(errors.ErrConfigValidate, "seat counts must not be empty")
	}
	for _, n := range room.RaceSeatCounts {
		if n < 2 || n > 4 {
			return errors.Newf(errors.ErrConfigValidate, "race seat count %d", n)
		}
	}
	for _, n := range room.HoldemSeatCounts {
		if n < 2 || n > 10 {
			return errors.Newf(errors.ErrConfigValidate, "holdem seat count %d", n)
		}
	}
	if c.Game.Turn.Timeout <= 0 || c.Game.Turn.SweepInterval <= 0 {
		return errors.New(errors.ErrConfigValidate, "turn timeout and sweep interval must be positive")
	}
	if c.Game.Race.MaxConsecutiveSixes < 1 {
		return errors.Newf(errors.ErrConfigValidate, "max_consecutive_sixes %d", c.Game.Race.MaxConsecutiveSixes)
	}
	for _, sq := range c.Game.Race.SafeSquares {
		if sq < 0 || sq >= 52 {
			return errors.Newf(errors.ErrConfigValidate, "safe square %d", sq)
		}
	}
	h := c.Game.Holdem
	if h.SmallBlind <= 0 || h.BigBlind < h.SmallBlind || h.StartingStack < h.BigBlind {
		return errors.Newf(errors.ErrConfigValidate, "holdem blinds %d/%d stack %d", h.SmallBlind, h.BigBlind, h.StartingStack)
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载校验失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}

		fmt.Println("配置已重新加载")
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt 获取整数配置
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool 获取布尔配置
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// IsSet 检查配置项是否存在
func IsSet(key string) bool {
	return v.IsSet(key)
}

// Set 动态设置配置值
func Set(key string, value interface{}) {
	v.Set(key, value)
}

// ConfigFileUsed 实际加载的配置文件，未找到时为空
func ConfigFileUsed() string {
	return v.ConfigFileUsed()
}
