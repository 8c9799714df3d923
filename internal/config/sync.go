package config

import (
	"os"
	"strconv"
	"time"
)

// SyncConfig holds the upload endpoint, credentials and retry policy.
type SyncConfig struct {
	// EndpointURL is the server collection endpoint. Empty means the device
	// has not been provisioned yet; every attempt then fails with a
	// configuration error instead of a network error.
	EndpointURL string `json:"endpointUrl"`
	AccessToken string `json:"-"` // Never serialize

	ConnectTimeout time.Duration `json:"connectTimeout"`
	ReadTimeout    time.Duration `json:"readTimeout"`

	// Backoff between attempts grows as BackoffBase * 2^min(attempts, BackoffMaxExponent).
	BackoffBase        time.Duration `json:"backoffBase"`
	BackoffMaxExponent int           `json:"backoffMaxExponent"`

	PeriodicInterval time.Duration `json:"periodicInterval"`
	Retention        time.Duration `json:"retention"`
	MaxConcurrent    int           `json:"maxConcurrent"`

	DeviceID   string `json:"deviceId"`
	AppVersion string `json:"appVersion"`
}

// DefaultSyncConfig loads the sync configuration from the environment.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		EndpointURL:        os.Getenv("UPLOAD_ENDPOINT"),
		AccessToken:        os.Getenv("UPLOAD_TOKEN"),
		ConnectTimeout:     getEnvDuration("UPLOAD_CONNECT_TIMEOUT", 10*time.Second),
		ReadTimeout:        getEnvDuration("UPLOAD_READ_TIMEOUT", 30*time.Second),
		BackoffBase:        getEnvDuration("UPLOAD_BACKOFF_BASE", 30*time.Second),
		BackoffMaxExponent: getEnvInt("UPLOAD_BACKOFF_MAX_EXP", 6),
		PeriodicInterval:   getEnvDuration("UPLOAD_SYNC_INTERVAL", 15*time.Minute),
		Retention:          getEnvDuration("UPLOAD_RETENTION", 30*24*time.Hour),
		MaxConcurrent:      getEnvInt("UPLOAD_MAX_CONCURRENT", 4),
		DeviceID:           getEnvOrDefault("DEVICE_ID", "dev-unknown"),
		AppVersion:         getEnvOrDefault("APP_VERSION", "dev"),
	}
}

// IsConfigured returns true if the endpoint and credential are set
func (c *SyncConfig) IsConfigured() bool {
	return c.EndpointURL != "" && c.AccessToken != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
