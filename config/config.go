package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI      string
	MongoDatabase string
	ServerPort    string
	Environment   string

	// Uploads
	UploadDir     string
	MaxUploadSize int64

	// Blob storage
	HDFSNamenode     string
	HDFSBaseDir      string
	BlobPublicURL    string
	BlobDurableHost  string
	BlobFetchRate    float64
	BlobFetchBurst   int
	BlobFetchTimeout time.Duration

	// Logging
	LogFilePath   string
	LogHMACKey    string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	publicURL := getEnv("BLOB_PUBLIC_URL", "http://localhost:8081/media")

	return &Config{
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "catalog_db"),
		ServerPort:    getEnv("SERVER_PORT", "8081"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadSize: int64(getEnvAsInt("MAX_UPLOAD_MB", 50)) * 1024 * 1024,

		HDFSNamenode:     getEnv("HDFS_NAMENODE", "namenode:9000"),
		HDFSBaseDir:      getEnv("HDFS_BASE_DIR", "/catalog/media"),
		BlobPublicURL:    publicURL,
		BlobDurableHost:  getEnv("BLOB_DURABLE_HOST", hostOf(publicURL)),
		BlobFetchRate:    getEnvAsFloat("BLOB_FETCH_RATE", 5),
		BlobFetchBurst:   getEnvAsInt("BLOB_FETCH_BURST", 5),
		BlobFetchTimeout: time.Duration(getEnvAsInt("BLOB_FETCH_TIMEOUT_SEC", 60)) * time.Second,

		LogFilePath:   getEnv("LOG_FILE_PATH", "/var/log/catalog-service/app.log"),
		LogHMACKey:    getEnv("LOG_HMAC_KEY", "default-hmac-key-change-in-production"),
		LogMaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// hostOf returns the host part of raw, or "" when raw does not parse.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
