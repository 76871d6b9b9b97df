package infra

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PREDICTION_API_URL", "https://api.replicate.com/v1/predictions")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("PREDICTION_POLL_INTERVAL_MS", "")
	t.Setenv("PREDICTION_TIMEOUT_MS", "")
	t.Setenv("AUTO_MIGRATE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.PredictionPollInterval != time.Second {
		t.Fatalf("PredictionPollInterval = %s, want 1s", cfg.PredictionPollInterval)
	}
	if cfg.PredictionTimeout != 30*time.Second {
		t.Fatalf("PredictionTimeout = %s, want 30s", cfg.PredictionTimeout)
	}
	if cfg.StorageDriver != "file" {
		t.Fatalf("StorageDriver = %q, want file", cfg.StorageDriver)
	}
	if !cfg.AutoMigrate {
		t.Fatal("AutoMigrate should default to true")
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PREDICTION_POLL_INTERVAL_MS", "250")
	t.Setenv("PREDICTION_TIMEOUT_MS", "5000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, ,http://localhost:5173")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PredictionPollInterval != 250*time.Millisecond {
		t.Fatalf("PredictionPollInterval = %s", cfg.PredictionPollInterval)
	}
	if cfg.PredictionTimeout != 5*time.Second {
		t.Fatalf("PredictionTimeout = %s", cfg.PredictionTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://localhost:5173" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.AutoMigrate {
		t.Fatal("AutoMigrate should be false")
	}
}

func TestLoadConfigRequiresPredictionURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PREDICTION_API_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when PREDICTION_API_URL is blank")
	}
}

func TestLoadConfigRequiresBucketForS3(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("S3_BUCKET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when S3_BUCKET is blank")
	}

	t.Setenv("S3_BUCKET", "ai-assets")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.S3Bucket != "ai-assets" {
		t.Fatalf("S3Bucket = %q", cfg.S3Bucket)
	}
}

func TestLoadConfigRejectsUnknownStorageDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "ftp")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestLoadConfigOIDCClientFallsBackToGoogleVar(t *testing.T) {
	setRequired(t)
	t.Setenv("OIDC_CLIENT_ID", "")
	t.Setenv("OIDC_ISSUER", "")
	t.Setenv("GOOGLE_CLIENT_ID", " web-client ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.OIDCClientID != "web-client" || cfg.OIDCIssuer != "https://accounts.google.com" {
		t.Fatalf("OIDC config = %q %q", cfg.OIDCIssuer, cfg.OIDCClientID)
	}
}
