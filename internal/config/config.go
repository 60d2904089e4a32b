package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"

	FileStorageLocal = "local"
	FileStorageS3    = "s3"
)

// Config holds the server settings read from the environment.
type Config struct {
	Env      string `envconfig:"ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort string `envconfig:"HTTP_PORT" default:"4020"`

	DBDriver   string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath     string `envconfig:"DB_PATH" default:".tmp/knowledge.db"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"knowledge"`

	// redis is optional; without it the graph cache and the cross-instance relay are disabled
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"knowledge.entries"`

	Compression string `envconfig:"COMPRESSION" default:"nop"`

	FileStorage string `envconfig:"FILE_STORAGE" default:"local"`
	FileDir     string `envconfig:"FILE_DIR" default:".tmp/files"`
	S3URL       string `envconfig:"S3_URL"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Key       string `envconfig:"S3_KEY"`
	S3Secret    string `envconfig:"S3_SECRET"`
	S3Bucket    string `envconfig:"S3_BUCKET"`

	AllowedRoles []string `envconfig:"ALLOWED_ROLES" default:"member,admin"`

	ReconcileSchedule   string        `envconfig:"RECONCILE_SCHEDULE" default:"@every 10m"`
	BackupCleanSchedule string        `envconfig:"BACKUP_CLEAN_SCHEDULE" default:"@every 1h"`
	BackupRetention     time.Duration `envconfig:"BACKUP_RETENTION" default:"720h"`
}

// DSN returns the postgres data source name.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c *Config) IsTest() bool {
	return c.Env == "test"
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSqlite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.FileStorage {
	case FileStorageLocal:
	case FileStorageS3:
		if c.S3URL == "" || c.S3Bucket == "" {
			return fmt.Errorf("FILE_STORAGE=s3 requires S3_URL and S3_BUCKET")
		}
	default:
		return fmt.Errorf("unsupported FILE_STORAGE %q", c.FileStorage)
	}

	return nil
}

// Load reads the environment, after loading a .env file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}

	for i, role := range c.AllowedRoles {
		c.AllowedRoles[i] = strings.TrimSpace(role)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// LoadConfig loads the configuration and sets the log level, exiting on invalid settings.
func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	return cfg
}

// OpenDb opens the database selected by DB_DRIVER.
func OpenDb(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		return gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	default:
		return gorm.Open(sqlite.Open(cfg.DBPath+"?_foreign_keys=on"), gormCfg)
	}
}

// GetDb opens the database and exits when it is unreachable.
func GetDb(cfg *Config) *gorm.DB {
	db, err := OpenDb(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect %s database: %v", cfg.DBDriver, err)
	}

	return db
}

// GetRedis returns a redis client, or nil when REDIS_ADDR is not set.
func GetRedis(cfg *Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
