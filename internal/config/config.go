package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BlobBackendLocal = "local"
	BlobBackendS3    = "s3"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	SessionCookieName  string
	CSRFEnforce        bool
	CORSAllowedOrigins []string
	Env                string
	APIMaxBodyBytes    int64
	ImportMaxFileBytes int64
	ImportMaxRows      int
	ImportRatePerMin   int
	BulkMaxLeads       int
	ReadHeaderTimeout  time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	RateLimitMaxIPs    int
	MetricsEnabled     bool
	AMQPURL            string
	Blob               BlobConfig
}

type BlobConfig struct {
	Backend     string
	LocalDir    string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:              getEnv("API_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "lb_sess"),
		CSRFEnforce:       getEnvBool("CSRF_ENFORCE", true),
		CORSAllowedOrigins: getEnvCSV("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}),
		Env:                getEnv("APP_ENV", "dev"),
		APIMaxBodyBytes:    int64(getEnvInt("API_MAX_BODY_MB", 2)) * 1024 * 1024,
		ImportMaxFileBytes: int64(getEnvInt("IMPORT_MAX_FILE_MB", 10)) * 1024 * 1024,
		ImportMaxRows:      getEnvInt("IMPORT_MAX_ROWS", 5000),
		ImportRatePerMin:   getEnvInt("IMPORT_RATE_LIMIT_PER_MIN", 20),
		BulkMaxLeads:       getEnvInt("BULK_MAX_LEADS", 500),
		ReadHeaderTimeout:  time.Duration(getEnvInt("API_READ_HEADER_TIMEOUT_SEC", 5)) * time.Second,
		ReadTimeout:        time.Duration(getEnvInt("API_READ_TIMEOUT_SEC", 30)) * time.Second,
		WriteTimeout:       time.Duration(getEnvInt("API_WRITE_TIMEOUT_SEC", 60)) * time.Second,
		IdleTimeout:        time.Duration(getEnvInt("API_IDLE_TIMEOUT_SEC", 60)) * time.Second,
		ShutdownTimeout:    time.Duration(getEnvInt("API_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		RateLimitMaxIPs:    getEnvInt("RATE_LIMIT_MAX_IPS", 10000),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		AMQPURL:            os.Getenv("AMQP_URL"),
		Blob: BlobConfig{
			Backend:     strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendLocal)),
			LocalDir:    getEnv("BLOB_LOCAL_DIR", "./data/uploads"),
			S3Bucket:    os.Getenv("S3_BUCKET"),
			S3Region:    getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.BulkMaxLeads <= 0 {
		return Config{}, fmt.Errorf("BULK_MAX_LEADS must be positive")
	}
	switch cfg.Blob.Backend {
	case BlobBackendLocal:
	case BlobBackendS3:
		if cfg.Blob.S3Bucket == "" {
			return Config{}, fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND=s3")
		}
	default:
		return Config{}, fmt.Errorf("unsupported BLOB_BACKEND %q", cfg.Blob.Backend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvCSV(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
