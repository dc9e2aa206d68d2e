package config

import (
	"errors"
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

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Calendar CalendarConfig
	Exports  ExportsConfig
	Rollover RolloverConfig
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
	QueryTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig tunes the range/layout engine.
type CalendarConfig struct {
	// MaxVisiblePerCell caps events rendered per month/week day cell; the
	// remainder is reported as an overflow count.
	MaxVisiblePerCell     int
	CompactVisiblePerCell int
	// DayStartHour/DayEndHour bound the detailed day/week grid. Events outside
	// are clipped to the nearest visible slot, never dropped.
	DayStartHour int
	DayEndHour   int
	SlotMinutes  int
	CacheTTL     time.Duration
	// MaxOccurrences caps recurrence expansion per event within one window.
	MaxOccurrences int
}

// ExportsConfig gates the window export endpoint.
type ExportsConfig struct {
	Enabled  bool
	Timezone string
}

// RolloverConfig drives the scheduled status rollover sweep.
type RolloverConfig struct {
	Enabled  bool
	Schedule string
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
		if !errors.As(err, &notFound) {
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
		QueryTimeout: parseDuration(v.GetString("DB_QUERY_TIMEOUT"), 10*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		MaxVisiblePerCell:     v.GetInt("CALENDAR_MAX_VISIBLE_PER_CELL"),
		CompactVisiblePerCell: v.GetInt("CALENDAR_COMPACT_VISIBLE_PER_CELL"),
		DayStartHour:          v.GetInt("CALENDAR_DAY_START_HOUR"),
		DayEndHour:            v.GetInt("CALENDAR_DAY_END_HOUR"),
		SlotMinutes:           v.GetInt("CALENDAR_SLOT_MINUTES"),
		CacheTTL:              parseDuration(v.GetString("CALENDAR_CACHE_TTL"), 2*time.Minute),
		MaxOccurrences:        v.GetInt("CALENDAR_MAX_OCCURRENCES"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:  v.GetBool("ENABLE_EXPORTS"),
		Timezone: v.GetString("EXPORTS_TIMEZONE"),
	}

	cfg.Rollover = RolloverConfig{
		Enabled:  v.GetBool("ENABLE_STATUS_ROLLOVER"),
		Schedule: v.GetString("STATUS_ROLLOVER_SCHEDULE"),
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
	v.SetDefault("DB_NAME", "tms_calendar")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_QUERY_TIMEOUT", "10s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_MAX_VISIBLE_PER_CELL", 3)
	v.SetDefault("CALENDAR_COMPACT_VISIBLE_PER_CELL", 2)
	v.SetDefault("CALENDAR_DAY_START_HOUR", 6)
	v.SetDefault("CALENDAR_DAY_END_HOUR", 22)
	v.SetDefault("CALENDAR_SLOT_MINUTES", 30)
	v.SetDefault("CALENDAR_CACHE_TTL", "2m")
	v.SetDefault("CALENDAR_MAX_OCCURRENCES", 366)

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_TIMEZONE", "UTC")

	v.SetDefault("ENABLE_STATUS_ROLLOVER", false)
	v.SetDefault("STATUS_ROLLOVER_SCHEDULE", "*/5 * * * *")
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
