package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Economy   EconomyConfig   `mapstructure:"economy"`
	Team      TeamConfig      `mapstructure:"team"`
	Guild     GuildConfig     `mapstructure:"guild"`
	Nexus     NexusConfig     `mapstructure:"nexus"`
	Shield    ShieldConfig    `mapstructure:"shield"`
	Objective ObjectiveConfig `mapstructure:"objective"`
	Market    MarketConfig    `mapstructure:"market"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
	// TickInterval is how often the scheduler re-derives time-driven
	// state (shield phases, nexus construction, objective expiry).
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
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
}

// EconomyConfig holds balance limits and anti-fraud thresholds.
// All monetary values are in the server currency with 0.01 granularity.
type EconomyConfig struct {
	StartingBalance   float64 `mapstructure:"starting_balance"`
	MaxBalance        float64 `mapstructure:"max_balance"`
	MaxTransferAmount float64 `mapstructure:"max_transfer_amount"` // per-transaction ceiling
	MaxDailyTransfer  float64 `mapstructure:"max_daily_transfer"`  // rolling 24h outflow cap
	SuspiciousValue   float64 `mapstructure:"suspicious_value"`    // single-transfer alert threshold
	AlertOnSuspicious bool    `mapstructure:"alert_on_suspicious"`
}

type TeamConfig struct {
	SwitchCost         float64 `mapstructure:"switch_cost"`
	SwitchCooldownDays int     `mapstructure:"switch_cooldown_days"`
}

type GuildConfig struct {
	CreationCost       float64 `mapstructure:"creation_cost"`
	DefaultMemberLimit int     `mapstructure:"default_member_limit"`
	MaxMemberLimit     int     `mapstructure:"max_member_limit"`
}

type NexusConfig struct {
	BuildCost             float64       `mapstructure:"build_cost"`
	BaseHealth            float64       `mapstructure:"base_health"`
	MaxLevel              int           `mapstructure:"max_level"`
	HealthGrowthFactor    float64       `mapstructure:"health_growth_factor"` // maxHealth multiplier per level
	UpgradeBaseCost       float64       `mapstructure:"upgrade_base_cost"`
	UpgradeCostMultiplier float64       `mapstructure:"upgrade_cost_multiplier"`
	RebuildMultiplier     float64       `mapstructure:"rebuild_multiplier"` // rebuild cost = build_cost × this
	RebuildCooldown       time.Duration `mapstructure:"rebuild_cooldown"`
	ConstructionTime      time.Duration `mapstructure:"construction_time"`
}

type ShieldConfig struct {
	ActivationCost float64       `mapstructure:"activation_cost"`
	Warmup         time.Duration `mapstructure:"warmup"`
	ActiveDuration time.Duration `mapstructure:"active_duration"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
}

type ObjectiveConfig struct {
	MaxActive      int                `mapstructure:"max_active"`
	Lifetime       time.Duration      `mapstructure:"lifetime"`
	BaseRewards    map[string]float64 `mapstructure:"base_rewards"`     // category → base reward pool
	DailyRewardCap float64            `mapstructure:"daily_reward_cap"` // per player
}

type MarketConfig struct {
	ListingFeePercent float64       `mapstructure:"listing_fee_percent"`
	SaleTaxPercent    float64       `mapstructure:"sale_tax_percent"`
	ListingLifetime   time.Duration `mapstructure:"listing_lifetime"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	AdminKey       string        `mapstructure:"admin_key"`  // empty disables the admin API
	AdminIPs       []string      `mapstructure:"admin_ips"`  // optional allowlist for /api/admin
	ServerKey      string        `mapstructure:"server_key"` // shared key for /api/internal; empty disables it
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.tick_interval", "5s")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/nexus.db")
	v.SetDefault("database.mysql_max_open", 20)
	v.SetDefault("database.mysql_max_idle", 5)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("economy.starting_balance", 1000.0)
	v.SetDefault("economy.max_balance", 100000000.0)
	v.SetDefault("economy.max_transfer_amount", 500000.0)
	v.SetDefault("economy.max_daily_transfer", 2000000.0)
	v.SetDefault("economy.suspicious_value", 1000000.0)
	v.SetDefault("economy.alert_on_suspicious", true)
	v.SetDefault("team.switch_cost", 1000000.0)
	v.SetDefault("team.switch_cooldown_days", 30)
	v.SetDefault("guild.creation_cost", 50000.0)
	v.SetDefault("guild.default_member_limit", 20)
	v.SetDefault("guild.max_member_limit", 50)
	v.SetDefault("nexus.build_cost", 500000.0)
	v.SetDefault("nexus.base_health", 10000.0)
	v.SetDefault("nexus.max_level", 10)
	v.SetDefault("nexus.health_growth_factor", 1.2)
	v.SetDefault("nexus.upgrade_base_cost", 100000.0)
	v.SetDefault("nexus.upgrade_cost_multiplier", 1.8)
	v.SetDefault("nexus.rebuild_multiplier", 1.5)
	v.SetDefault("nexus.rebuild_cooldown", "72h")
	v.SetDefault("nexus.construction_time", "10m")
	v.SetDefault("shield.activation_cost", 50000.0)
	v.SetDefault("shield.warmup", "5m")
	v.SetDefault("shield.active_duration", "1h")
	v.SetDefault("shield.cooldown", "24h")
	v.SetDefault("objective.max_active", 10)
	v.SetDefault("objective.lifetime", "6h")
	v.SetDefault("objective.base_rewards", map[string]float64{
		"PVE":         5000,
		"PVP":         8000,
		"EXPLORATION": 4000,
		"SUPPORT":     3000,
	})
	v.SetDefault("objective.daily_reward_cap", 50000.0)
	v.SetDefault("market.listing_fee_percent", 2.0)
	v.SetDefault("market.sale_tax_percent", 5.0)
	v.SetDefault("market.listing_lifetime", "168h")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
