// Package config handles application configuration loading from YAML and environment variables.
package config

import (
	"errors"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "dailyquiz/internal/utils"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Redis assignment cache
	Redis RedisConfig `json:"redis" yaml:"redis"`

	// Quiz engine configuration
	Quiz QuizConfig `json:"quiz" yaml:"quiz"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	WorkerPort    string   `json:"worker_port" yaml:"worker_port"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	// IPHashSalt keys the BLAKE2b hash stored with each attempt. Empty means unkeyed.
	IPHashSalt string `json:"ip_hash_salt" yaml:"ip_hash_salt"`
	// TrustIdentityHeaders makes the auth middleware accept X-User-Label and
	// X-User-Admin from an upstream proxy. Leave off unless the proxy strips them.
	TrustIdentityHeaders bool `json:"trust_identity_headers" yaml:"trust_identity_headers"`
	// AdminLabels are user labels granted admin when signing in through /v1/session.
	AdminLabels []string `json:"admin_labels" yaml:"admin_labels"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
}

// RedisConfig configures the optional assignment cache
type RedisConfig struct {
	URL      string        `json:"url" yaml:"url"` // empty disables the cache
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// QuizConfig holds the daily quiz engine settings
type QuizConfig struct {
	// Timezone is the IANA zone every day key is computed in.
	Timezone            string        `json:"timezone" yaml:"timezone"`
	Subjects            []string      `json:"subjects" yaml:"subjects"`
	RepeatAvoidDays     int           `json:"repeat_avoid_days" yaml:"repeat_avoid_days"`
	FetchChunkSize      int           `json:"fetch_chunk_size" yaml:"fetch_chunk_size"`
	WarmupInterval      time.Duration `json:"warmup_interval" yaml:"warmup_interval"`
	WarmTomorrowPreview bool          `json:"warm_tomorrow_preview" yaml:"warm_tomorrow_preview"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "dailyquiz-server" or "dailyquiz-worker"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`   // hand spans to the eBPF auto-instrumentation SDK
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	// Load config from YAML file
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	// Override with environment variables
	config.overrideFromEnv()
	config.applyDefaults()

	if _, err := config.Location(); err != nil {
		return nil, err
	}

	return config, nil
}

// Location resolves the configured day timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Quiz.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Quiz.Timezone)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid quiz.timezone %q: %w", c.Quiz.Timezone, err)
	}
	return loc, nil
}

// IsSupportedSubject reports whether subject is one of the configured subjects
func (c *Config) IsSupportedSubject(subject string) bool {
	for _, s := range c.Quiz.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// IsAdminLabel reports whether a label signing in through the session endpoint is an admin
func (c *Config) IsAdminLabel(label string) bool {
	for _, l := range c.Server.AdminLabels {
		if strings.EqualFold(strings.TrimSpace(l), label) {
			return true
		}
	}
	return false
}

// applyDefaults fills every zero value that has a sensible default
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.WorkerPort == "" {
		c.Server.WorkerPort = DefaultWorkerPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = DefaultCacheTTL
	}
	if c.Quiz.Timezone == "" {
		c.Quiz.Timezone = "UTC"
	}
	if len(c.Quiz.Subjects) == 0 {
		c.Quiz.Subjects = append([]string(nil), DefaultSubjects...)
	}
	for i, s := range c.Quiz.Subjects {
		c.Quiz.Subjects[i] = strings.ToLower(strings.TrimSpace(s))
	}
	if c.Quiz.RepeatAvoidDays <= 0 {
		c.Quiz.RepeatAvoidDays = DefaultRepeatAvoidDays
	}
	if c.Quiz.FetchChunkSize <= 0 {
		c.Quiz.FetchChunkSize = DefaultFetchChunkSize
	}
	if c.Quiz.WarmupInterval <= 0 {
		c.Quiz.WarmupInterval = DefaultWarmupInterval
	}
	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
	if c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		// Durations are int64 underneath; accept "10m" style values
		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if uintVal, err := strconv.ParseUint(envVal, 10, 64); err == nil {
					field.SetUint(uintVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					parts := strings.Split(envVal, ",")
					for i := range parts {
						parts[i] = strings.TrimSpace(parts[i])
					}
					field.Set(reflect.ValueOf(parts))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by QUIZ_CONFIG_FILE, else ./config.yaml.
// A missing default file yields an empty config so defaults and env vars apply.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv("QUIZ_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return config, err
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
