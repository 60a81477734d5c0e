package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// AppConfig holds file and environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string   `json:"AppPort" env:"APP_PORT"`
	JWTSecret          string   `json:"JWTSecret" env:"JWT_SECRET"`
	TokenTTLHours      int      `json:"TokenTTLHours" env:"TOKEN_TTL_HOURS"`
	RateLimitPerMinute int      `json:"RateLimitPerMinute" env:"RATE_LIMIT_PER_MINUTE"`
	AllowedOrigins     []string `json:"AllowedOrigins" env:"CORS_ALLOWED_ORIGINS"`
	DefaultPageSize    int      `json:"DefaultPageSize" env:"DEFAULT_PAGE_SIZE"`
	// Gin framework configuration
	GinMode string `json:"GinMode" env:"GIN_MODE"`
	GinPath string `json:"GinPath" env:"GIN_PATH"`
	// Database: sqlite (local file), mysql or postgres
	DBDriver    string `json:"DBDriver" env:"DB_DRIVER"`
	DatabaseURI string `json:"DatabaseURI" env:"DATABASE_URI"`
	DBPath      string `json:"DBPath" env:"DB_PATH"`
	DBHost      string `json:"DBHost" env:"DB_HOST"`
	DBPort      string `json:"DBPort" env:"DB_PORT"`
	DBUser      string `json:"DBUser" env:"DB_USER"`
	DBPassword  string `json:"DBPassword" env:"DB_PASSWORD"`
	DBName      string `json:"DBName" env:"DB_NAME"`
	// Redis for caching and the token blacklist; empty host disables it
	RedisHost        string `json:"RedisHost" env:"REDIS_HOST"`
	RedisPort        int    `json:"RedisPort" env:"REDIS_PORT"`
	RedisDB          int    `json:"RedisDB" env:"REDIS_DB"`
	RedisPassword    string `json:"RedisPassword" env:"REDIS_PASSWORD"`
	ListCacheSeconds int    `json:"ListCacheSeconds" env:"LIST_CACHE_SECONDS"`
	// Logging configuration
	LogLevel      string `json:"LogLevel" env:"LOG_LEVEL"`
	LogPath       string `json:"LogPath" env:"LOG_PATH"`
	LogMaxSizeMB  int    `json:"LogMaxSizeMB" env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `json:"LogMaxBackups" env:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `json:"LogMaxAgeDays" env:"LOG_MAX_AGE_DAYS"`
	LogCompress   bool   `json:"LogCompress" env:"LOG_COMPRESS"`
	// Admin bootstrap; the password only ever comes from the environment or the config file
	AdminUsername string `json:"AdminUsername" env:"ADMIN_USERNAME"`
	AdminPassword string `json:"AdminPassword" env:"ADMIN_PASSWORD"`
	// Blob storage: local or s3
	BlobBackend       string `json:"BlobBackend" env:"BLOB_BACKEND"`
	UploadDir         string `json:"UploadDir" env:"UPLOAD_DIR"`
	UploadMaxMB       int    `json:"UploadMaxMB" env:"UPLOAD_MAX_MB"`
	S3Bucket          string `json:"S3Bucket" env:"S3_BUCKET"`
	S3Region          string `json:"S3Region" env:"S3_REGION"`
	S3Endpoint        string `json:"S3Endpoint" env:"S3_ENDPOINT"`
	S3AccessKeyID     string `json:"S3AccessKeyID" env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `json:"S3SecretAccessKey" env:"S3_SECRET_ACCESS_KEY"`
}

// DefaultPath is where Load looks for the optional JSON config file.
var DefaultPath = filepath.Join("config", "config.json")

var cfg AppConfig
var loaded bool

// Load loads the application configuration once and caches it.
// Precedence: config file -> environment variable overrides -> defaults for zero values.
func Load() (AppConfig, error) {
	if loaded {
		return cfg, nil
	}
	c, err := LoadFrom(DefaultPath)
	if err != nil {
		return AppConfig{}, err
	}
	Set(c)
	return cfg, nil
}

// LoadFrom builds a configuration from the given file path and the environment without caching it.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := env.Parse(&c); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	applyDefaults(&c)

	if c.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET must be set in environment variables or the config file")
	}
	return c, nil
}

// Set replaces the cached configuration. Tests use it to avoid touching the environment.
func Set(c AppConfig) {
	cfg = c
	loaded = true
}

// Get returns the cached configuration. It panics when nothing was loaded.
func Get() AppConfig {
	if !loaded {
		c, err := Load()
		if err != nil {
			panic(err)
		}
		return c
	}
	return cfg
}

// loadJSONConfig reads the JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(out)
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 72
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = 10
	}
	if c.DBDriver == "" {
		c.DBDriver = "sqlite"
	}
	if c.DBPath == "" {
		c.DBPath = "data/board.db"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		switch c.DBDriver {
		case "postgres":
			c.DBPort = "5432"
		default:
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "board"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.ListCacheSeconds == 0 {
		c.ListCacheSeconds = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	if c.BlobBackend == "" {
		c.BlobBackend = "local"
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join("data", "uploads")
	}
	if c.UploadMaxMB == 0 {
		c.UploadMaxMB = 50
	}
	if c.S3Region == "" {
		c.S3Region = "auto"
	}
}
