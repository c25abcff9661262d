package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Cloud document store kinds.
const (
	CloudStoreNone     = ""
	CloudStorePostgres = "postgres"
	CloudStoreMongo    = "mongo"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Auth     AuthConfig
	AWS      AWSConfig
	Uploads  UploadConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// StoreConfig selects the persistent store. The local file is always used;
// CloudStore optionally layers a cloud document store over it.
type StoreConfig struct {
	DataFile   string
	CloudStore string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection settings. Empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds token verification settings. An empty JWTSecret disables
// authentication entirely (development posture only).
type AuthConfig struct {
	JWTSecret   string
	ExpireHours int
	OfficerRole string
}

// AWSConfig holds AWS credentials and the private proof bucket. Empty Bucket
// disables the cloud object store.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	PresignExpireMinutes int
}

// UploadConfig holds local object storage and upload limits.
type UploadConfig struct {
	Dir          string
	URLPrefix    string
	MaxMB        int
	URLCacheSize int
}

// MaxBytes returns the upload size limit in bytes.
func (u UploadConfig) MaxBytes() int64 {
	return int64(u.MaxMB) * 1024 * 1024
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 60),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Store: StoreConfig{
			DataFile:   getEnv("DATA_FILE", "data/db.json"),
			CloudStore: strings.ToLower(strings.TrimSpace(os.Getenv("CLOUD_STORE"))),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/campus_dues?sslmode=disable"),
			MaxConns: getEnvInt("DATABASE_MAX_CONNS", 4),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "campus_dues"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:   os.Getenv("JWT_SECRET"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
			OfficerRole: getEnv("OFFICER_ROLE", "officer"),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Bucket:               os.Getenv("AWS_S3_BUCKET"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 60),
		},
		Uploads: UploadConfig{
			Dir:          getEnv("UPLOAD_DIR", "uploads"),
			URLPrefix:    getEnv("UPLOAD_URL_PREFIX", "/uploads"),
			MaxMB:        getEnvInt("MAX_UPLOAD_MB", 10),
			URLCacheSize: getEnvInt("URL_CACHE_SIZE", 512),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.CloudStore {
	case CloudStoreNone, CloudStorePostgres, CloudStoreMongo:
	default:
		return fmt.Errorf("CLOUD_STORE must be empty, %q or %q, got %q", CloudStorePostgres, CloudStoreMongo, c.Store.CloudStore)
	}
	if c.Store.DataFile == "" {
		return fmt.Errorf("DATA_FILE must not be empty")
	}
	if c.Uploads.MaxMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
