// Package config loads service configuration from an optional JSON file
// overlaid with environment variables.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Defaults applied by MergeWithDefaults.
const (
	DefaultPort              = 8080
	DefaultAppEnv            = EnvProduction
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultTasteGraphBaseURL = "https://hackathon.api.qloo.com"
	DefaultSearchTimeout     = 5 * time.Second
	DefaultInsightsTimeout   = 8 * time.Second
	DefaultGenerationTimeout = 12 * time.Second
)

// Duration is a time.Duration that reads "5s"-style strings from JSON.
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds")
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the service configuration. All fields are optional in the file;
// environment variables win over file values.
type Config struct {
	// Server
	Port      int    `json:"port,omitempty"`
	AppEnv    string `json:"app_env,omitempty"`
	LogLevel  string `json:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty"`

	// Preference store
	DatabaseURL string `json:"database_url,omitempty"`

	// Text generation
	GeminiAPIKey      string   `json:"gemini_api_key,omitempty"`
	GeminiModel       string   `json:"gemini_model,omitempty"`
	GenerationTimeout Duration `json:"generation_timeout,omitempty"`

	// Taste graph
	TasteGraphAPIKey  string   `json:"qloo_api_key,omitempty"`
	TasteGraphBaseURL string   `json:"qloo_base_url,omitempty"`
	InsightsMethod    string   `json:"insights_method,omitempty"` // GET or POST
	SearchTimeout     Duration `json:"search_timeout,omitempty"`
	InsightsTimeout   Duration `json:"insights_timeout,omitempty"`
	ResolveCap        int      `json:"resolve_cap,omitempty"`
	Take              int      `json:"take,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:              DefaultPort,
		AppEnv:            DefaultAppEnv,
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		TasteGraphBaseURL: DefaultTasteGraphBaseURL,
		InsightsMethod:    http.MethodGet,
		SearchTimeout:     Duration(DefaultSearchTimeout),
		InsightsTimeout:   Duration(DefaultInsightsTimeout),
		GenerationTimeout: Duration(DefaultGenerationTimeout),
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load builds the effective configuration: file (if path is set), then
// environment, then defaults, then validation.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ApplyEnv overlays non-empty environment variables onto c.
// DATABASE_URL wins over STORE_CREDENTIALS when both are set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.AppEnv, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")
	setString(&c.TasteGraphAPIKey, "QLOO_API_KEY")
	setString(&c.TasteGraphBaseURL, "QLOO_BASE_URL")
	setString(&c.InsightsMethod, "QLOO_INSIGHTS_METHOD")

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config error: PORT must be an integer: %w", err)
		}
		c.Port = port
	}

	for key, dst := range map[string]*Duration{
		"SEARCH_TIMEOUT":     &c.SearchTimeout,
		"INSIGHTS_TIMEOUT":   &c.InsightsTimeout,
		"GENERATION_TIMEOUT": &c.GenerationTimeout,
	} {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config error: %s: %w", key, err)
			}
			*dst = Duration(d)
		}
	}

	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		c.DatabaseURL = v
	} else if v := getenv("STORE_CREDENTIALS"); v != "" {
		url, err := DecodeCredentials(v)
		if err != nil {
			return err
		}
		c.DatabaseURL = url
	}

	return nil
}

// storeCredentials is the JSON document carried by STORE_CREDENTIALS.
type storeCredentials struct {
	DatabaseURL string `json:"database_url"`
}

// DecodeCredentials extracts the database URL from a credentials document,
// given either as plain JSON or as base64-encoded JSON.
func DecodeCredentials(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("store credentials are empty")
	}

	data := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return "", fmt.Errorf("store credentials are neither JSON nor base64: %w", err)
		}
		data = decoded
	}

	var creds storeCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("failed to parse store credentials: %w", err)
	}
	if creds.DatabaseURL == "" {
		return "", fmt.Errorf("store credentials missing database_url")
	}
	return creds.DatabaseURL, nil
}

// Validate checks that the configuration has valid values.
// API keys are not required here: the pipeline degrades without them.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}

	switch strings.ToUpper(c.InsightsMethod) {
	case "", http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("config error: 'insights_method' must be GET or POST, got %q", c.InsightsMethod)
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "json", "console":
	default:
		return fmt.Errorf("config error: 'log_format' must be json or console, got %q", c.LogFormat)
	}

	if c.SearchTimeout < 0 || c.InsightsTimeout < 0 || c.GenerationTimeout < 0 {
		return fmt.Errorf("config error: timeouts must be non-negative")
	}
	if c.ResolveCap < 0 || c.Take < 0 {
		return fmt.Errorf("config error: 'resolve_cap' and 'take' must be non-negative")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.AppEnv == "" {
		result.AppEnv = defaults.AppEnv
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.LogFormat == "" {
		result.LogFormat = defaults.LogFormat
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.GeminiModel == "" {
		result.GeminiModel = defaults.GeminiModel
	}
	if result.TasteGraphAPIKey == "" {
		result.TasteGraphAPIKey = defaults.TasteGraphAPIKey
	}
	if result.TasteGraphBaseURL == "" {
		result.TasteGraphBaseURL = defaults.TasteGraphBaseURL
	}
	if result.InsightsMethod == "" {
		result.InsightsMethod = defaults.InsightsMethod
	}
	result.InsightsMethod = strings.ToUpper(result.InsightsMethod)

	if result.SearchTimeout == 0 {
		result.SearchTimeout = defaults.SearchTimeout
	}
	if result.InsightsTimeout == 0 {
		result.InsightsTimeout = defaults.InsightsTimeout
	}
	if result.GenerationTimeout == 0 {
		result.GenerationTimeout = defaults.GenerationTimeout
	}
	if result.ResolveCap == 0 {
		result.ResolveCap = defaults.ResolveCap
	}
	if result.Take == 0 {
		result.Take = defaults.Take
	}

	return result
}

// IsDevelopment reports whether stack traces may be exposed in responses.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, EnvDevelopment)
}

// ReportedEnvVars are the variables whose presence EnvReport shows.
var ReportedEnvVars = []string{"QLOO_API_KEY", "GEMINI_API_KEY", "DATABASE_URL", "STORE_CREDENTIALS"}

// EnvReport maps each secret-bearing variable to "Present" or "Missing" and
// APP_ENV to its value. Values of secrets are never included.
func EnvReport(getenv func(string) string) map[string]string {
	report := make(map[string]string, len(ReportedEnvVars)+1)
	for _, key := range ReportedEnvVars {
		if getenv(key) != "" {
			report[key] = "Present"
		} else {
			report[key] = "Missing"
		}
	}
	if env := getenv("APP_ENV"); env != "" {
		report["APP_ENV"] = env
	} else {
		report["APP_ENV"] = "Not set"
	}
	return report
}
