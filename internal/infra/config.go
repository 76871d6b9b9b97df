package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	AutoMigrate bool

	// OIDCClientID enables ID tokens from OIDCIssuer (Google by default) as bearer tokens.
	OIDCIssuer   string
	OIDCClientID string

	PredictionAPIURL       string
	PredictionAPIToken     string
	PredictionPollInterval time.Duration
	PredictionTimeout      time.Duration
	ModelRegistryPath      string

	StorageDriver   string
	StoragePath     string
	StorageBaseURL  string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKeyID   string
	S3SecretKey     string
	S3UsePathStyle  bool
	S3PublicBaseURL string

	CORSAllowedOrigins []string
	RateLimitPerMin    int
	GeoIPDBPath        string
	DefaultLocale      string

	WorkerConcurrency  int
	WorkerIdleInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadEnvFiles loads .env files when present. Variables already set in the
// environment win.
func LoadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// The prediction token may be left blank here and resolved later from the credential store.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", true),

		OIDCIssuer:   getEnv("OIDC_ISSUER", "https://accounts.google.com"),
		OIDCClientID: strings.TrimSpace(getEnv("OIDC_CLIENT_ID", os.Getenv("GOOGLE_CLIENT_ID"))),

		PredictionAPIURL:       strings.TrimSpace(os.Getenv("PREDICTION_API_URL")),
		PredictionAPIToken:     strings.TrimSpace(os.Getenv("PREDICTION_API_TOKEN")),
		PredictionPollInterval: getEnvMillis("PREDICTION_POLL_INTERVAL_MS", time.Second),
		PredictionTimeout:      getEnvMillis("PREDICTION_TIMEOUT_MS", 30*time.Second),
		ModelRegistryPath:      os.Getenv("MODEL_REGISTRY_PATH"),

		StorageDriver:   strings.ToLower(getEnv("STORAGE_DRIVER", "file")),
		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:   os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:     os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3UsePathStyle:  getEnvBool("S3_USE_PATH_STYLE", false),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),

		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerIdleInterval: getEnvMillis("WORKER_IDLE_INTERVAL_MS", 2*time.Second),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PredictionAPIURL == "" {
		return nil, fmt.Errorf("PREDICTION_API_URL is required")
	}
	switch cfg.StorageDriver {
	case "file":
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
