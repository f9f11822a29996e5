package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Config struct {
	Port          int           `yaml:"port"`
	LogLevel      string        `yaml:"log_level"`
	LogEncoding   string        `yaml:"log_encoding"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	AllowedOrigin string        `yaml:"allowed_origin"`

	CacheType          string        `yaml:"cache"`
	CacheMaxEntries    int           `yaml:"cache_max_entries"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	CacheControlMaxAge int           `yaml:"cache_control_max_age"`

	UpstreamTimeout   time.Duration `yaml:"upstream_timeout"`
	UpstreamUserAgent string        `yaml:"upstream_user_agent"`
	MaxImageBytes     int64         `yaml:"max_image_bytes"`

	Extract ExtractConfig `yaml:"extract"`

	PlaceholderPath string `yaml:"placeholder_path"`
	PlaceholderFile string `yaml:"placeholder_file"`

	RegistryFile  string `yaml:"registry_file"`
	WarmupCameras int    `yaml:"warmup_cameras"`
	WarmupWorkers int    `yaml:"warmup_workers"`
}

// ExtractConfig holds the frame extractor tuning knobs.
type ExtractConfig struct {
	ReadChunk         int  `yaml:"read_chunk"`
	MaxReads          int  `yaml:"max_reads"`
	MaxBuffer         int  `yaml:"max_buffer"`
	BandMin           int  `yaml:"band_min"`
	BandMax           int  `yaml:"band_max"`
	MinFrame          int  `yaml:"min_frame"`
	EmergencyMinFrame int  `yaml:"emergency_min_frame"`
	ValidateAll       bool `yaml:"validate_all"`
}

func Default() *Config {
	return &Config{
		Port:               8080,
		LogLevel:           "info",
		LogEncoding:        "json",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		AllowedOrigin:      "*",
		CacheType:          "memory",
		CacheMaxEntries:    100,
		CacheTTL:           30 * time.Second,
		CacheControlMaxAge: 30,
		UpstreamTimeout:    10 * time.Second,
		UpstreamUserAgent:  DefaultUserAgent,
		MaxImageBytes:      10 << 20,
		Extract: ExtractConfig{
			ReadChunk:         32 << 10,
			MaxReads:          100,
			MaxBuffer:         2 << 20,
			BandMin:           5 << 10,
			BandMax:           1 << 20,
			MinFrame:          1000,
			EmergencyMinFrame: 500,
		},
		PlaceholderPath: "/static/camera-offline.jpg",
		RegistryFile:    "camera_data.json",
		WarmupCameras:   0,
		WarmupWorkers:   4,
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogEncoding = getEnv("LOG_ENCODING", c.LogEncoding)
	c.ReadTimeout = getEnvDuration("READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", c.WriteTimeout)
	c.AllowedOrigin = getEnv("ALLOWED_ORIGIN", c.AllowedOrigin)

	c.CacheType = getEnv("CACHE", c.CacheType)
	c.CacheMaxEntries = getEnvInt("CACHE_MAX_ENTRIES", c.CacheMaxEntries)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.CacheControlMaxAge = getEnvInt("CACHE_CONTROL_MAX_AGE", c.CacheControlMaxAge)

	c.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", c.UpstreamTimeout)
	c.UpstreamUserAgent = getEnv("UPSTREAM_USER_AGENT", c.UpstreamUserAgent)
	c.MaxImageBytes = getEnvInt64("MAX_IMAGE_BYTES", c.MaxImageBytes)

	c.Extract.ReadChunk = getEnvInt("EXTRACT_READ_CHUNK", c.Extract.ReadChunk)
	c.Extract.MaxReads = getEnvInt("EXTRACT_MAX_READS", c.Extract.MaxReads)
	c.Extract.MaxBuffer = getEnvInt("EXTRACT_MAX_BUFFER", c.Extract.MaxBuffer)
	c.Extract.BandMin = getEnvInt("EXTRACT_BAND_MIN", c.Extract.BandMin)
	c.Extract.BandMax = getEnvInt("EXTRACT_BAND_MAX", c.Extract.BandMax)
	c.Extract.MinFrame = getEnvInt("EXTRACT_MIN_FRAME", c.Extract.MinFrame)
	c.Extract.EmergencyMinFrame = getEnvInt("EXTRACT_EMERGENCY_MIN_FRAME", c.Extract.EmergencyMinFrame)
	c.Extract.ValidateAll = getEnvBool("EXTRACT_VALIDATE_ALL", c.Extract.ValidateAll)

	c.PlaceholderPath = getEnv("PLACEHOLDER_PATH", c.PlaceholderPath)
	c.PlaceholderFile = getEnv("PLACEHOLDER_FILE", c.PlaceholderFile)

	c.RegistryFile = getEnv("REGISTRY_FILE", c.RegistryFile)
	c.WarmupCameras = getEnvInt("WARMUP_CAMERAS", c.WarmupCameras)
	c.WarmupWorkers = getEnvInt("WARMUP_WORKERS", c.WarmupWorkers)
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("port out of range: %d", c.Port)
	case c.CacheType == "memory" && c.CacheMaxEntries <= 0:
		return errors.New("cache_max_entries must be positive")
	case c.CacheTTL <= 0:
		return errors.New("cache_ttl must be positive")
	case c.UpstreamTimeout <= 0:
		return errors.New("upstream_timeout must be positive")
	case c.MaxImageBytes <= 0:
		return errors.New("max_image_bytes must be positive")
	case !strings.HasPrefix(c.PlaceholderPath, "/"):
		return fmt.Errorf("placeholder_path must be absolute: %q", c.PlaceholderPath)
	}
	return c.Extract.Validate()
}

func (e ExtractConfig) Validate() error {
	switch {
	case e.ReadChunk <= 0:
		return errors.New("extract.read_chunk must be positive")
	case e.MaxReads <= 0:
		return errors.New("extract.max_reads must be positive")
	case e.MaxBuffer <= e.ReadChunk:
		return errors.New("extract.max_buffer must exceed extract.read_chunk")
	case e.BandMin > e.BandMax:
		return fmt.Errorf("extract band is empty: min %d > max %d", e.BandMin, e.BandMax)
	case e.MinFrame <= 0 || e.EmergencyMinFrame <= 0:
		return errors.New("extract minimum frame sizes must be positive")
	}
	return nil
}

func (c *Config) CacheEnabled() bool {
	return c.CacheType != "disabled"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// Accepts Go duration strings ("10s") or bare seconds ("10").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
