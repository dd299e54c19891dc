package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"     validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue"     validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache"     validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains connection settings for the Redis instance backing
// the extraction queue and the OCR result cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"   validate:"gte=0"`
}

// QueueConfig controls the retry and retention policy recorded on every
// enqueued extraction job. Retries are executed by the queue consumers, not
// by this process; the values here are attached to the job at enqueue time.
type QueueConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"   validate:"required,gte=1"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"   validate:"required"`
	KeepCompleted int           `mapstructure:"keep_completed" validate:"required,gte=1"`
	KeepFailed    int           `mapstructure:"keep_failed"    validate:"required,gte=1"`
}

// CacheConfig contains tunables for the OCR result cache.
type CacheConfig struct {
	OCRTTL time.Duration `mapstructure:"ocr_ttl" validate:"required"`
}

// SchedulerConfig bounds concurrent work issued through the async scheduler,
// currently the cache warmup writes.
type SchedulerConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"required,gte=1"`
}
