package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. FromEnv keeps main lean;
// every knob has a development default.
type Config struct {
	Addr         string
	PostgresDSN  string
	Redis        RedisConfig
	KafkaBrokers string
	KafkaTopic   string
	Dispatch     DispatchConfig
}

// RedisConfig tunes the platform redis client used by cache invalidation.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DispatchConfig tunes the event dispatcher's async mode.
type DispatchConfig struct {
	PoolSize     int
	AsyncTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:         envOr("INKWELL_ADDR", ":8080"),
		PostgresDSN:  os.Getenv("INKWELL_POSTGRES_DSN"),
		KafkaBrokers: os.Getenv("INKWELL_KAFKA_BROKERS"),
		KafkaTopic:   envOr("INKWELL_KAFKA_TOPIC", "inkwell.content.events"),
		Redis: RedisConfig{
			URL:          os.Getenv("INKWELL_REDIS_URL"),
			PoolSize:     envIntOr("INKWELL_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("INKWELL_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDurationOr("INKWELL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("INKWELL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("INKWELL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Dispatch: DispatchConfig{
			PoolSize:     envIntOr("INKWELL_DISPATCH_POOL_SIZE", 10),
			AsyncTimeout: envDurationOr("INKWELL_DISPATCH_TIMEOUT", 5*time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
