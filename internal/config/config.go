package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Matching     MatchingConfig
	Admission    AdmissionConfig
	Cache        CacheConfig
	VideoSession VideoSessionConfig
	Logging      LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// MatchingConfig carries every timing knob of the pairing engine.
type MatchingConfig struct {
	VoteWindow            time.Duration // date length == vote deadline
	DateCountdown         time.Duration // pre-date countdown shown to both sides
	ExitCooldown          time.Duration // penalty for ending a date early
	PassInterval          time.Duration // scheduler interval between matching passes
	GuardianInterval      time.Duration
	JoinGrace             time.Duration // fresh joins are matchable without a heartbeat
	Liveness              time.Duration // heartbeat recency required after the grace
	StaleAfter            time.Duration // guardian resets waiters silent this long
	MaxQueueWait          time.Duration // guardian resets waiters queued this long
	PassBatchSize         int
	FairnessPassBump      float64
	FairnessMinorityBonus float64
}

type AdmissionConfig struct {
	RateLimitWindow  time.Duration
	RateLimitMax     int64
	GateFloor        int64
	GateBaseline     int64
	GateCeiling      int64
	GateQueueSize    int64
	GateQueueTimeout time.Duration
	AdaptiveInterval time.Duration
	CPUHighPct       float64
	CPULowPct        float64
	MemHighPct       float64
	DBHighRatio      float64
}

type CacheConfig struct {
	PartnerTTL     time.Duration
	ActiveMatchTTL time.Duration
	HistoryTTL     time.Duration
}

type VideoSessionConfig struct {
	TokenSecret   string
	RoomNamespace string
}

type LoggingConfig struct {
	Level string
}

// Load loads configuration from environment variables or .env file
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Try to read from .env file, but don't fail if it doesn't exist
	_ = viper.ReadInConfig()

	setDefaults()

	config := &Config{
		Server: ServerConfig{
			Host:         viper.GetString("SERVER_HOST"),
			Port:         viper.GetInt("SERVER_PORT"),
			Env:          viper.GetString("ENV"),
			ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			DBName:          viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSL_MODE"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Matching: MatchingConfig{
			VoteWindow:            viper.GetDuration("MATCH_VOTE_WINDOW"),
			DateCountdown:         viper.GetDuration("MATCH_DATE_COUNTDOWN"),
			ExitCooldown:          viper.GetDuration("MATCH_EXIT_COOLDOWN"),
			PassInterval:          viper.GetDuration("MATCH_PASS_INTERVAL"),
			GuardianInterval:      viper.GetDuration("MATCH_GUARDIAN_INTERVAL"),
			JoinGrace:             viper.GetDuration("MATCH_JOIN_GRACE"),
			Liveness:              viper.GetDuration("MATCH_LIVENESS"),
			StaleAfter:            viper.GetDuration("MATCH_STALE_AFTER"),
			MaxQueueWait:          viper.GetDuration("MATCH_MAX_QUEUE_WAIT"),
			PassBatchSize:         viper.GetInt("MATCH_PASS_BATCH_SIZE"),
			FairnessPassBump:      viper.GetFloat64("MATCH_FAIRNESS_PASS_BUMP"),
			FairnessMinorityBonus: viper.GetFloat64("MATCH_FAIRNESS_MINORITY_BONUS"),
		},
		Admission: AdmissionConfig{
			RateLimitWindow:  viper.GetDuration("ADMISSION_RATE_WINDOW"),
			RateLimitMax:     viper.GetInt64("ADMISSION_RATE_MAX"),
			GateFloor:        viper.GetInt64("ADMISSION_GATE_FLOOR"),
			GateBaseline:     viper.GetInt64("ADMISSION_GATE_BASELINE"),
			GateCeiling:      viper.GetInt64("ADMISSION_GATE_CEILING"),
			GateQueueSize:    viper.GetInt64("ADMISSION_GATE_QUEUE_SIZE"),
			GateQueueTimeout: viper.GetDuration("ADMISSION_GATE_QUEUE_TIMEOUT"),
			AdaptiveInterval: viper.GetDuration("ADMISSION_ADAPTIVE_INTERVAL"),
			CPUHighPct:       viper.GetFloat64("ADMISSION_CPU_HIGH_PCT"),
			CPULowPct:        viper.GetFloat64("ADMISSION_CPU_LOW_PCT"),
			MemHighPct:       viper.GetFloat64("ADMISSION_MEM_HIGH_PCT"),
			DBHighRatio:      viper.GetFloat64("ADMISSION_DB_HIGH_RATIO"),
		},
		Cache: CacheConfig{
			PartnerTTL:     viper.GetDuration("CACHE_PARTNER_TTL"),
			ActiveMatchTTL: viper.GetDuration("CACHE_ACTIVE_MATCH_TTL"),
			HistoryTTL:     viper.GetDuration("CACHE_HISTORY_TTL"),
		},
		VideoSession: VideoSessionConfig{
			TokenSecret:   viper.GetString("VIDEO_TOKEN_SECRET"),
			RoomNamespace: viper.GetString("VIDEO_ROOM_NAMESPACE"),
		},
		Logging: LoggingConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	// Validate critical configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)

	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 100)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", time.Hour)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("MATCH_VOTE_WINDOW", 60*time.Second)
	viper.SetDefault("MATCH_DATE_COUNTDOWN", 5*time.Second)
	viper.SetDefault("MATCH_EXIT_COOLDOWN", 120*time.Second)
	viper.SetDefault("MATCH_PASS_INTERVAL", 3*time.Second)
	viper.SetDefault("MATCH_GUARDIAN_INTERVAL", 5*time.Second)
	viper.SetDefault("MATCH_JOIN_GRACE", 60*time.Second)
	viper.SetDefault("MATCH_LIVENESS", 15*time.Second)
	viper.SetDefault("MATCH_STALE_AFTER", 90*time.Second)
	viper.SetDefault("MATCH_MAX_QUEUE_WAIT", 5*time.Minute)
	viper.SetDefault("MATCH_PASS_BATCH_SIZE", 100)
	viper.SetDefault("MATCH_FAIRNESS_PASS_BUMP", 1.0)
	viper.SetDefault("MATCH_FAIRNESS_MINORITY_BONUS", 2.0)

	viper.SetDefault("ADMISSION_RATE_WINDOW", 10*time.Second)
	viper.SetDefault("ADMISSION_RATE_MAX", 30)
	viper.SetDefault("ADMISSION_GATE_FLOOR", 8)
	viper.SetDefault("ADMISSION_GATE_BASELINE", 32)
	viper.SetDefault("ADMISSION_GATE_CEILING", 128)
	viper.SetDefault("ADMISSION_GATE_QUEUE_SIZE", 64)
	viper.SetDefault("ADMISSION_GATE_QUEUE_TIMEOUT", 2*time.Second)
	viper.SetDefault("ADMISSION_ADAPTIVE_INTERVAL", 5*time.Second)
	viper.SetDefault("ADMISSION_CPU_HIGH_PCT", 85.0)
	viper.SetDefault("ADMISSION_CPU_LOW_PCT", 40.0)
	viper.SetDefault("ADMISSION_MEM_HIGH_PCT", 90.0)
	viper.SetDefault("ADMISSION_DB_HIGH_RATIO", 0.9)

	viper.SetDefault("CACHE_PARTNER_TTL", 30*time.Second)
	viper.SetDefault("CACHE_ACTIVE_MATCH_TTL", 10*time.Second)
	viper.SetDefault("CACHE_HISTORY_TTL", 10*time.Minute)

	viper.SetDefault("VIDEO_ROOM_NAMESPACE", "6ba7b812-9dad-11d1-80b4-00c04fd430c8")

	viper.SetDefault("LOG_LEVEL", "info")
}

// Validate validates critical configuration values
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.VideoSession.TokenSecret == "" {
		return fmt.Errorf("video token secret is required")
	}
	if len(c.VideoSession.TokenSecret) < 32 {
		return fmt.Errorf("video token secret must be at least 32 characters")
	}
	if c.Matching.VoteWindow <= 0 {
		return fmt.Errorf("vote window must be positive")
	}
	if c.Matching.DateCountdown < 0 {
		return fmt.Errorf("date countdown must not be negative")
	}
	if c.Admission.GateFloor <= 0 || c.Admission.GateFloor > c.Admission.GateBaseline ||
		c.Admission.GateBaseline > c.Admission.GateCeiling {
		return fmt.Errorf("admission gate bounds must satisfy 0 < floor <= baseline <= ceiling")
	}
	if c.Admission.RateLimitMax <= 0 || c.Admission.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window and max must be positive")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetRedisAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
