package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Outing    OutingConfig
	Scheduler SchedulerConfig
	Events    EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig describes how upstream-issued access tokens are verified.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OutingConfig holds the time policy for outings and QR passes.
type OutingConfig struct {
	Timezone        string
	QRSecret        string
	PreReturnOffset time.Duration
	LateGrace       time.Duration
	StudentCacheTTL time.Duration
}

// Location resolves the configured timezone, falling back to the local zone.
func (c OutingConfig) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SchedulerConfig controls the incoming-pass tick and the daily sweep.
type SchedulerConfig struct {
	Enabled         bool
	TickInterval    time.Duration
	SweepTime       string
	ConflictRetries int
}

// EventsConfig controls fan-out of scan and decision events over Redis.
type EventsConfig struct {
	Enabled    bool
	Channel    string
	Workers    int
	BufferSize int
	MaxRetries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Outing = OutingConfig{
		Timezone:        v.GetString("OUTING_TIMEZONE"),
		QRSecret:        v.GetString("OUTING_QR_SECRET"),
		PreReturnOffset: parseDuration(v.GetString("OUTING_PRE_RETURN_OFFSET"), 30*time.Minute),
		LateGrace:       parseDuration(v.GetString("OUTING_LATE_GRACE"), 30*time.Minute),
		StudentCacheTTL: parseDuration(v.GetString("OUTING_STUDENT_CACHE_TTL"), 10*time.Minute),
	}

	sweepTime := strings.TrimSpace(v.GetString("SCHEDULER_SWEEP_TIME"))
	if _, err := time.Parse("15:04", sweepTime); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_SWEEP_TIME %q: expected HH:MM", sweepTime)
	}
	cfg.Scheduler = SchedulerConfig{
		Enabled:         v.GetBool("ENABLE_SCHEDULER"),
		TickInterval:    parseDuration(v.GetString("SCHEDULER_TICK_INTERVAL"), time.Minute),
		SweepTime:       sweepTime,
		ConflictRetries: v.GetInt("SCHEDULER_CONFLICT_RETRIES"),
	}

	cfg.Events = EventsConfig{
		Enabled:    v.GetBool("ENABLE_EVENTS"),
		Channel:    v.GetString("EVENTS_CHANNEL"),
		Workers:    v.GetInt("EVENTS_WORKERS"),
		BufferSize: v.GetInt("EVENTS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("EVENTS_MAX_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "hostel_outing")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OUTING_TIMEZONE", "Local")
	v.SetDefault("OUTING_QR_SECRET", "dev_qr_secret")
	v.SetDefault("OUTING_PRE_RETURN_OFFSET", "30m")
	v.SetDefault("OUTING_LATE_GRACE", "30m")
	v.SetDefault("OUTING_STUDENT_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_TICK_INTERVAL", "1m")
	v.SetDefault("SCHEDULER_SWEEP_TIME", "23:59")
	v.SetDefault("SCHEDULER_CONFLICT_RETRIES", 3)

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("EVENTS_CHANNEL", "outing:events")
	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_BUFFER_SIZE", 256)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
