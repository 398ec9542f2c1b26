package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Catalog CatalogConfig
	Match   MatchConfig
	Stamp   StampConfig
	OCR     OCRConfig
	LLM     LLMConfig
	Store   StoreConfig
	Inbox   InboxConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// CatalogConfig holds reference-table configuration
type CatalogConfig struct {
	Path          string
	Watch         bool
	WatchDebounce time.Duration
}

// MatchConfig holds vendor-matching thresholds. Acceptable precision/recall
// trade-offs are catalog-dependent, so all three are tunable.
type MatchConfig struct {
	AcceptThreshold float64 // at/above: unambiguous best match
	FloorThreshold  float64 // below: no match
	AmbiguityDelta  float64 // runner-up within delta of best: manual selection
}

// StampConfig holds approval-stamp content configuration
type StampConfig struct {
	Approver  string
	OwnerName string // owner company; never matched as a vendor
}

// OCRConfig holds text-extraction collaborator configuration
type OCRConfig struct {
	AzureEndpoint string
	AzureKey      string
	Enhance       bool // pre-enhance page images before the OCR call
	Timeout       time.Duration
}

// LLMConfig holds the optional fallback field-extractor configuration
type LLMConfig struct {
	Enabled     bool
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// StoreConfig holds session-store configuration
type StoreConfig struct {
	Path string // sqlite file; empty disables persistence
}

// InboxConfig holds drop-folder ingestion configuration
type InboxConfig struct {
	Dir         string // watched directory; empty disables ingestion
	InitialScan bool   // ingest files already present at startup
	Debounce    time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Catalog: CatalogConfig{
			Path:          getEnv("CATALOG_PATH", ""),
			Watch:         getEnvAsBool("CATALOG_WATCH", true),
			WatchDebounce: getEnvAsDuration("CATALOG_WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Match: MatchConfig{
			AcceptThreshold: getEnvAsFloat64("MATCH_ACCEPT_THRESHOLD", 0.85),
			FloorThreshold:  getEnvAsFloat64("MATCH_FLOOR_THRESHOLD", 0.55),
			AmbiguityDelta:  getEnvAsFloat64("MATCH_AMBIGUITY_DELTA", 0.05),
		},
		Stamp: StampConfig{
			Approver:  getEnv("APPROVER_NAME", ""),
			OwnerName: getEnv("OWNER_NAME", ""),
		},
		OCR: OCRConfig{
			AzureEndpoint: getEnv("AZURE_CV_ENDPOINT", ""),
			AzureKey:      getEnv("AZURE_CV_KEY", ""),
			Enhance:       getEnvAsBool("OCR_ENHANCE", true),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			Enabled:     getEnvAsBool("LLM_FALLBACK_ENABLED", false),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Store: StoreConfig{
			Path: getEnv("SESSION_DB_PATH", ""),
		},
		Inbox: InboxConfig{
			Dir:         getEnv("INBOX_DIR", ""),
			InitialScan: getEnvAsBool("INBOX_INITIAL_SCAN", true),
			Debounce:    getEnvAsDuration("INBOX_DEBOUNCE", 500*time.Millisecond),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return NewAppError(ErrInvalidInput, "CATALOG_PATH is required", nil)
	}
	if c.Stamp.Approver == "" {
		return NewAppError(ErrInvalidInput, "APPROVER_NAME is required", nil)
	}
	if c.OCR.AzureEndpoint == "" || c.OCR.AzureKey == "" {
		return NewAppError(ErrInvalidInput, "AZURE_CV_ENDPOINT and AZURE_CV_KEY are required", nil)
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return NewAppError(ErrInvalidInput, "OPENAI_API_KEY is required when LLM_FALLBACK_ENABLED", nil)
	}
	if c.Match.AcceptThreshold <= c.Match.FloorThreshold {
		return NewAppError(ErrInvalidInput, "MATCH_ACCEPT_THRESHOLD must exceed MATCH_FLOOR_THRESHOLD", nil)
	}
	return nil
}
