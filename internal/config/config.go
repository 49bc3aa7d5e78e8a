package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	MongoURI    string
	DBName      string
	Environment string

	// Queue. When RedisAddr is empty the in-process queue is used.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueStream   string
	QueueGroup    string
	QueueConsumer string

	// Optional external SQL data source. Registered only when SQLSourceDriver
	// is set; accepted values are "postgres", "postgresql", and "mysql".
	SQLSourceDriver   string
	SQLSourceName     string
	SQLSourceHost     string
	SQLSourcePort     int
	SQLSourceDatabase string
	SQLSourceUser     string
	SQLSourcePassword string
	SQLSourceTables   []string
	SQLSourceDateCol  string

	// Storage backend: "local" or "s3".
	StorageDriver string
	FSPath        string // Physical directory for generated export files
	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3UseSSL      bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-export"),
		Environment: getEnv("ENVIRONMENT", "development"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		QueueStream:   getEnv("QUEUE_STREAM", "export_tasks"),
		QueueGroup:    getEnv("QUEUE_GROUP", "export_workers"),
		QueueConsumer: getEnv("QUEUE_CONSUMER", "worker-1"),

		SQLSourceDriver:   getEnv("SQL_SOURCE_DRIVER", ""),
		SQLSourceName:     getEnv("SQL_SOURCE_NAME", "External Database"),
		SQLSourceHost:     getEnv("SQL_SOURCE_HOST", "localhost"),
		SQLSourcePort:     getEnvInt("SQL_SOURCE_PORT", 0),
		SQLSourceDatabase: getEnv("SQL_SOURCE_DATABASE", ""),
		SQLSourceUser:     getEnv("SQL_SOURCE_USER", ""),
		SQLSourcePassword: getEnv("SQL_SOURCE_PASSWORD", ""),
		SQLSourceTables:   getEnvList("SQL_SOURCE_TABLES"),
		SQLSourceDateCol:  getEnv("SQL_SOURCE_DATE_COLUMN", "created_at"),

		StorageDriver: getEnv("STORAGE_DRIVER", "local"),
		FSPath:        getEnv("FS_PATH", "./exports"),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		S3Region:      getEnv("S3_REGION", ""),
		S3Bucket:      getEnv("S3_BUCKET", "exports"),
		S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:   getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:      getEnv("S3_USE_SSL", "true") == "true",
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
