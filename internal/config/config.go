// backend-go/internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/normalize"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Drive     DriveConfig
	Scheduler SchedulerConfig
	Analysis  domain.Settings
	Matching  MatchingConfig
}

type ServerConfig struct {
	Port           string `validate:"required,numeric"`
	Mode           string `validate:"oneof=debug release test"`
	ReadTimeout    int    `validate:"gte=0"`
	WriteTimeout   int    `validate:"gte=0"`
	AllowedOrigins []string
	RateLimit      int64 `validate:"gte=0"`
	RateBurst      int64 `validate:"gtefield=RateLimit"`
	MaxUploadMB    int64 `validate:"gt=0"`
}

type DatabaseConfig struct {
	Enabled        bool
	URL            string
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string `validate:"omitempty,oneof=disable require verify-ca verify-full prefer allow"`
	MaxConcurrency int64  `validate:"gt=0"`
}

// DSN returns the connection string, preferring the explicit URL.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type AppConfig struct {
	UploadDir   string `validate:"required"`
	DataDir     string `validate:"required"`
	ReportDir   string `validate:"required"`
	LogLevel    string
	LogFormat   string `validate:"omitempty,oneof=console json"`
	WorkerCount int    `validate:"gt=0"`
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
	TTLSeconds    int `validate:"gte=0"`
}

type StorageConfig struct {
	Enabled      bool
	Endpoint     string `validate:"required_if=Enabled true"`
	AccessKey    string `validate:"required_if=Enabled true"`
	SecretKey    string `validate:"required_if=Enabled true"`
	Bucket       string `validate:"required_if=Enabled true"`
	Region       string
	UseSSL       bool
	InboxPrefix  string
	ReportPrefix string
}

type DriveConfig struct {
	Enabled         bool
	CredentialsJSON string `validate:"required_if=Enabled true"`
	FolderPath      string
}

type SchedulerConfig struct {
	Enabled  bool
	SyncCron string `validate:"required_if=Enabled true"`
}

type MatchingConfig struct {
	BrandMaxTokens  int `validate:"gt=0"`
	BrandKeepTokens int `validate:"gt=0,ltefield=BrandMaxTokens"`
	// CustomCategories extend the predefined category list for corrections.
	CustomCategories []string
}

// Brands returns the brand extractor configured by m.
func (m MatchingConfig) Brands() normalize.BrandExtractor {
	return normalize.BrandExtractor{MaxTokens: m.BrandMaxTokens, KeepTokens: m.BrandKeepTokens}
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()
		viper.AutomaticEnv()

		instance = fromViper()

		ensureDir(instance.App.UploadDir)
		ensureDir(instance.App.DataDir)
		ensureDir(instance.App.ReportDir)
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 30)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("SERVER_RATE_LIMIT", 20)
	viper.SetDefault("SERVER_RATE_BURST", 200)
	viper.SetDefault("SERVER_MAX_UPLOAD_MB", 64)

	viper.SetDefault("DB_ENABLED", false)
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "pharmstock")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONCURRENCY", 10)

	viper.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	viper.SetDefault("APP_DATA_DIR", "./data/output")
	viper.SetDefault("APP_REPORT_DIR", "./data/reports")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
	viper.SetDefault("APP_WORKER_COUNT", 4)

	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_TTL_SECONDS", 300)

	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("STORAGE_INBOX_PREFIX", "inbox/")
	viper.SetDefault("STORAGE_REPORT_PREFIX", "reports/")

	viper.SetDefault("DRIVE_ENABLED", false)
	viper.SetDefault("DRIVE_FOLDER_PATH", "")

	viper.SetDefault("SCHEDULER_ENABLED", false)
	viper.SetDefault("SCHEDULER_SYNC_CRON", "0 6 * * *")

	d := domain.DefaultSettings()
	viper.SetDefault("ALERT_RUPTURE_DAYS", d.AlertRupture)
	viper.SetDefault("ALERT_SECURITY_DAYS", d.AlertSecurity)
	viper.SetDefault("OVERSTOCK_DAYS", d.Overstock)
	viper.SetDefault("NEAR_EXPIRY_DAYS", d.NearExpiryDays)
	viper.SetDefault("STALE_PRICE_MONTHS", d.StalePriceMonths)
	viper.SetDefault("GROWTH_GLOBAL", d.GrowthGlobal)

	viper.SetDefault("MATCH_BRAND_MAX_TOKENS", normalize.DefaultBrandExtractor.MaxTokens)
	viper.SetDefault("MATCH_BRAND_KEEP_TOKENS", normalize.DefaultBrandExtractor.KeepTokens)
	viper.SetDefault("MATCH_CUSTOM_CATEGORIES", []string{})
}

func fromViper() *Config {
	analysis := domain.DefaultSettings()
	analysis.AlertRupture = viper.GetFloat64("ALERT_RUPTURE_DAYS")
	analysis.AlertSecurity = viper.GetFloat64("ALERT_SECURITY_DAYS")
	analysis.Overstock = viper.GetFloat64("OVERSTOCK_DAYS")
	analysis.NearExpiryDays = viper.GetInt("NEAR_EXPIRY_DAYS")
	analysis.StalePriceMonths = viper.GetInt("STALE_PRICE_MONTHS")
	analysis.GrowthGlobal = viper.GetFloat64("GROWTH_GLOBAL")
	for _, c := range domain.Categories {
		key := "GROWTH_" + strings.ToUpper(string(c))
		if viper.IsSet(key) {
			analysis.GrowthCategories[c] = viper.GetFloat64(key)
		}
	}
	for class := range domain.DefaultTargetMonths {
		key := "TARGET_MONTHS_" + class
		if viper.IsSet(key) {
			analysis.TargetMonths[class] = viper.GetFloat64(key)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			RateLimit:      viper.GetInt64("SERVER_RATE_LIMIT"),
			RateBurst:      viper.GetInt64("SERVER_RATE_BURST"),
			MaxUploadMB:    viper.GetInt64("SERVER_MAX_UPLOAD_MB"),
		},
		Database: DatabaseConfig{
			Enabled:        viper.GetBool("DB_ENABLED"),
			URL:            viper.GetString("DATABASE_URL"),
			Host:           viper.GetString("DB_HOST"),
			Port:           viper.GetString("DB_PORT"),
			User:           viper.GetString("DB_USER"),
			Password:       viper.GetString("DB_PASSWORD"),
			DBName:         viper.GetString("DB_NAME"),
			SSLMode:        viper.GetString("DB_SSLMODE"),
			MaxConcurrency: viper.GetInt64("DB_MAX_CONCURRENCY"),
		},
		App: AppConfig{
			UploadDir:   viper.GetString("APP_UPLOAD_DIR"),
			DataDir:     viper.GetString("APP_DATA_DIR"),
			ReportDir:   viper.GetString("APP_REPORT_DIR"),
			LogLevel:    viper.GetString("LOG_LEVEL"),
			LogFormat:   viper.GetString("LOG_FORMAT"),
			WorkerCount: viper.GetInt("APP_WORKER_COUNT"),
		},
		Cache: CacheConfig{
			Enabled:       viper.GetBool("CACHE_ENABLED"),
			RedisURL:      viper.GetString("REDIS_URL"),
			RedisHost:     viper.GetString("REDIS_HOST"),
			RedisPort:     viper.GetString("REDIS_PORT"),
			RedisPassword: viper.GetString("REDIS_PASSWORD"),
			RedisDB:       viper.GetInt("REDIS_DB"),
			TTLSeconds:    viper.GetInt("CACHE_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:      viper.GetBool("STORAGE_ENABLED"),
			Endpoint:     viper.GetString("STORAGE_ENDPOINT"),
			AccessKey:    viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:    viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:       viper.GetString("STORAGE_BUCKET"),
			Region:       viper.GetString("STORAGE_REGION"),
			UseSSL:       viper.GetBool("STORAGE_USE_SSL"),
			InboxPrefix:  viper.GetString("STORAGE_INBOX_PREFIX"),
			ReportPrefix: viper.GetString("STORAGE_REPORT_PREFIX"),
		},
		Drive: DriveConfig{
			Enabled:         viper.GetBool("DRIVE_ENABLED"),
			CredentialsJSON: viper.GetString("DRIVE_CREDENTIALS_JSON"),
			FolderPath:      viper.GetString("DRIVE_FOLDER_PATH"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  viper.GetBool("SCHEDULER_ENABLED"),
			SyncCron: viper.GetString("SCHEDULER_SYNC_CRON"),
		},
		Analysis: analysis,
		Matching: MatchingConfig{
			BrandMaxTokens:   viper.GetInt("MATCH_BRAND_MAX_TOKENS"),
			BrandKeepTokens:  viper.GetInt("MATCH_BRAND_KEEP_TOKENS"),
			CustomCategories: viper.GetStringSlice("MATCH_CUSTOM_CATEGORIES"),
		},
	}
}

// Validate checks every section against its struct tags.
func (c *Config) Validate() error {
	v := validator.New()
	for _, section := range []any{c.Server, c.Database, c.App, c.Cache, c.Storage, c.Drive, c.Scheduler, c.Analysis, c.Matching} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
