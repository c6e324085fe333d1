// Package config provides application configuration with multi-source
// priority: environment variables override the config file
// (~/.hal/config.yaml), which overrides built-in defaults.
//
// Sensitive fields (database password, API token) are masked in
// MarshalJSON; never log the raw struct through other paths.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates an empty or malformed model name.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates a temperature outside [0, 2].
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates a non-positive max tokens value.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidPostgresHost indicates an empty PostgreSQL host.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates a PostgreSQL port out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresSSLMode indicates an unsupported sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrMissingAuthToken indicates serve mode without an API auth token.
	ErrMissingAuthToken = errors.New("missing auth token")

	// ErrInvalidTimeout indicates a non-positive adapter timeout.
	ErrInvalidTimeout = errors.New("invalid adapter timeout")
)

// Default model settings.
const (
	DefaultModelName     = "gemini-2.5-flash"
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultAdapterTimeout bounds individual model/retrieval calls. The
	// pipeline executor imposes no deadline of its own; the adapter does.
	DefaultAdapterTimeout = 60 * time.Second
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; update it when
// adding passwords, keys or tokens.
type Config struct {
	// Model settings
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`

	// AdapterTimeoutSec bounds each model/embedding call in seconds.
	AdapterTimeoutSec int `mapstructure:"adapter_timeout_sec" json:"adapter_timeout_sec"`

	// HTTP server settings
	Addr        string   `mapstructure:"addr" json:"addr"`
	AuthToken   string   `mapstructure:"auth_token" json:"auth_token"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// PostgreSQL settings
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// AdapterTimeout returns the configured per-call timeout as a Duration.
func (c *Config) AdapterTimeout() time.Duration {
	if c.AdapterTimeoutSec <= 0 {
		return DefaultAdapterTimeout
	}
	return time.Duration(c.AdapterTimeoutSec) * time.Second
}

// Load reads configuration from defaults, config file and environment.
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".hal"))
	}
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("HAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults plus env carry a dev setup.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("adapter_timeout_sec", 60)

	viper.SetDefault("addr", "localhost:8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "hal")
	viper.SetDefault("postgres_password", "hal_dev_password")
	viper.SetDefault("postgres_db_name", "hal")
	viper.SetDefault("postgres_ssl_mode", "disable")
}

// Validate checks settings every mode needs.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v not in [0, 2]", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.AdapterTimeoutSec <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTimeout, c.AdapterTimeoutSec)
	}
	if strings.TrimSpace(c.PostgresHost) == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}

// ValidateServe checks settings the HTTP server additionally requires.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.AuthToken) == "" {
		return fmt.Errorf("%w: set HAL_AUTH_TOKEN or auth_token", ErrMissingAuthToken)
	}
	return nil
}

// PostgresConnectionString returns the DSN for the pgx driver. The password
// is quoted to survive spaces and '=' characters.
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresUser,
		quoteDSNValue(c.PostgresPassword),
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// PostgresURL returns the URL form used by golang-migrate.
func (c *Config) PostgresURL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.PostgresSSLMode),
	}
	return u.String()
}

// parseDatabaseURL lets DATABASE_URL override the individual postgres_*
// settings, the form cloud deployments usually provide.
func (c *Config) parseDatabaseURL() error {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil
	}

	parsed, err := url.Parse(dbURL)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://, got %q", parsed.Scheme)
	}

	if host := parsed.Hostname(); host != "" {
		c.PostgresHost = host
	}
	if portStr := parsed.Port(); portStr != "" {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
			return fmt.Errorf("invalid port in DATABASE_URL: %w", err)
		}
		c.PostgresPort = port
	}
	if parsed.User != nil {
		if user := parsed.User.Username(); user != "" {
			c.PostgresUser = user
		}
		if password, ok := parsed.User.Password(); ok {
			c.PostgresPassword = password
		}
	}
	if db := strings.TrimPrefix(parsed.Path, "/"); db != "" {
		c.PostgresDBName = db
	}
	if mode := parsed.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}
	return nil
}

func quoteDSNValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// MarshalJSON masks sensitive fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	if masked.AuthToken != "" {
		masked.AuthToken = "***"
	}
	return json.Marshal(masked)
}
