package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	AI       AIConfig       `mapstructure:"ai"`
	Trace    TraceConfig    `mapstructure:"trace"`
	Arena    ArenaConfig    `mapstructure:"arena"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | memory | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type AIConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	PositionTTL      time.Duration `mapstructure:"position_ttl"`
	DefaultFormation string        `mapstructure:"default_formation"`
	DefaultStrategy  string        `mapstructure:"default_strategy"`
	DisabledCommands []string      `mapstructure:"disabled_commands"`
}

type TraceConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	SampleEvery   int           `mapstructure:"sample_every"` // persist every Nth pass
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Buffer        int           `mapstructure:"buffer"`
	Channel       string        `mapstructure:"channel"`
	LatestTTL     time.Duration `mapstructure:"latest_ttl"`
	HistoryLen    int           `mapstructure:"history_len"`
}

type ArenaConfig struct {
	RosterPath      string  `mapstructure:"roster_path"`
	Terrain         string  `mapstructure:"terrain"` // flat | rolling | none
	MoveSpeed       float64 `mapstructure:"move_speed"`
	PlayerMaxHealth float64 `mapstructure:"player_max_health"`
	PlayerRegen     float64 `mapstructure:"player_regen"`
	EnemyMaxHealth  float64 `mapstructure:"enemy_max_health"`
	EnemySpeed      float64 `mapstructure:"enemy_speed"`
	EnemyDamage     float64 `mapstructure:"enemy_damage"`
	EnemyReach      float64 `mapstructure:"enemy_reach"`
	EnemyCooldown   float64 `mapstructure:"enemy_cooldown"`
	EnemyRespawn    float64 `mapstructure:"enemy_respawn"` // seconds
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return decode(v)
}

// Default returns the configuration with every default applied and no file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/allyai.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("ai.tick_interval", "100ms")
	v.SetDefault("ai.position_ttl", "500ms")
	v.SetDefault("ai.default_formation", "scattered")
	v.SetDefault("ai.default_strategy", "balanced")
	v.SetDefault("ai.disabled_commands", []string{})
	v.SetDefault("trace.enabled", true)
	v.SetDefault("trace.sample_every", 10)
	v.SetDefault("trace.batch_size", 100)
	v.SetDefault("trace.flush_interval", "2s")
	v.SetDefault("trace.buffer", 1024)
	v.SetDefault("trace.channel", "allyai:decisions")
	v.SetDefault("trace.latest_ttl", "1m")
	v.SetDefault("trace.history_len", 20)
	v.SetDefault("arena.roster_path", "./data/roster.yaml")
	v.SetDefault("arena.terrain", "flat")
	v.SetDefault("arena.move_speed", 5.0)
	v.SetDefault("arena.player_max_health", 200.0)
	v.SetDefault("arena.player_regen", 2.0)
	v.SetDefault("arena.enemy_max_health", 200.0)
	v.SetDefault("arena.enemy_speed", 2.5)
	v.SetDefault("arena.enemy_damage", 8.0)
	v.SetDefault("arena.enemy_reach", 2.0)
	v.SetDefault("arena.enemy_cooldown", 1.5)
	v.SetDefault("arena.enemy_respawn", 5.0)
}
