package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"surveybot/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Config struct {
	BotToken      string
	AdminIDs      []int64
	QuestionsFile string
	ImagesDir     string
	ChartFont     string

	Port    string
	LogMode string

	DBDriver   string // sqlite or postgres
	DBPath     string // sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost string
	RedisPort string

	SessionTTL    time.Duration
	SweepInterval time.Duration
	TallyCacheTTL time.Duration

	Branch models.BranchRule
}

func Load() *Config {
	return &Config{
		BotToken:      getEnv("BOT_TOKEN", ""),
		AdminIDs:      getEnvInt64List("ADMIN_IDS", nil),
		QuestionsFile: getEnv("QUESTIONS_FILE", "questions.json"),
		ImagesDir:     getEnv("IMAGES_DIR", "images"),
		ChartFont:     getEnv("CHART_FONT", ""),
		Port:          getEnv("PORT", "8080"),
		LogMode:       getEnv("LOG_MODE", "dev"),
		DBDriver:      getEnv("DB_DRIVER", "sqlite"),
		DBPath:        getEnv("DB_PATH", "survey_data.db"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "surveybot"),
		DBPassword:    getEnv("DB_PASSWORD", "surveybot"),
		DBName:        getEnv("DB_NAME", "surveybot"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
		TallyCacheTTL: getEnvDuration("TALLY_CACHE_TTL", 5*time.Minute),
		Branch: models.BranchRule{
			GatingIndex:   getEnvInt("BRANCH_GATING_INDEX", 3),
			TriggerOption: getEnv("BRANCH_TRIGGER_OPTION", "No"),
			SkipToIndex:   getEnvInt("BRANCH_SKIP_TO_INDEX", 7),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt64List(key string, defaultValue []int64) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
