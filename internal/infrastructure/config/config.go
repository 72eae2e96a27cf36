package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Host transport modes.
const (
	HostTransportLocal = "local"
	HostTransportMQTT  = "mqtt"
)

// Result store backends.
const (
	ResultStoreMemory = "memory"
	ResultStoreRedis  = "redis"
)

// Config is the root configuration structure for the automation creator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
	Host       HostConfig       `yaml:"host"`
	LLM        LLMConfig        `yaml:"llm"`
	Creator    CreatorConfig    `yaml:"creator"`
	Redis      RedisConfig      `yaml:"redis"`
	Submission SubmissionConfig `yaml:"submission"`
	Panel      PanelConfig      `yaml:"panel"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// HostConfig selects how the panel reaches the host's service layer.
type HostConfig struct {
	// Transport is "local" (in-process registry) or "mqtt" (remote host).
	Transport string `yaml:"transport"`

	// CallTimeout bounds a single remote service call in seconds.
	CallTimeout int `yaml:"call_timeout"`

	// Entities seeds the local host's state store so generation has
	// something to refer to.
	Entities []HostEntityConfig `yaml:"entities"`
}

// HostEntityConfig is one seeded entity.
type HostEntityConfig struct {
	EntityID     string `yaml:"entity_id"`
	State        string `yaml:"state"`
	FriendlyName string `yaml:"friendly_name"`
}

// LLMConfig contains the language model settings used for generation.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
}

// CreatorConfig contains settings for the automation creation service.
type CreatorConfig struct {
	// Enabled registers the creation services with the host.
	Enabled bool `yaml:"enabled"`

	// AutomationsFile is the automations.yaml the generated automation is appended to.
	// Empty disables file output.
	AutomationsFile string `yaml:"automations_file"`

	// InlineResult returns the generated YAML from the creation call itself.
	// When false the caller must fetch it with get_automation_yaml.
	InlineResult bool `yaml:"inline_result"`

	// UseChoose wraps actions in a choose block keyed by trigger ids.
	UseChoose bool `yaml:"use_choose"`

	// ResultStore is "memory" or "redis".
	ResultStore string `yaml:"result_store"`

	// WatchFile republishes automation entities when AutomationsFile is
	// edited outside the creator.
	WatchFile bool `yaml:"watch_file"`
}

// RedisConfig contains Redis connection settings for the result store.
type RedisConfig struct {
	URL string `yaml:"url"`
	TTL int    `yaml:"ttl"` // seconds
}

// SubmissionConfig contains the retry policy for fetching generated results.
type SubmissionConfig struct {
	// InitialDelayMS is the wait before the first fetch, giving the backend
	// time to process.
	InitialDelayMS int `yaml:"initial_delay_ms"`

	// RetryDelayMS is the wait between fetch attempts.
	RetryDelayMS int `yaml:"retry_delay_ms"`

	// MaxFetchAttempts is the fetch budget per submission.
	MaxFetchAttempts int `yaml:"max_fetch_attempts"`

	// Timeout bounds a whole submission in seconds.
	Timeout int `yaml:"timeout"`
}

// PanelConfig contains settings for the panel UI.
type PanelConfig struct {
	SidebarTitle string   `yaml:"sidebar_title"`
	SidebarIcon  string   `yaml:"sidebar_icon"`
	WebDir       string   `yaml:"web_dir"`
	Questions    []string `yaml:"questions"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AUTOCREATOR_SECTION_KEY
// For example: AUTOCREATOR_DATABASE_PATH, AUTOCREATOR_LLM_API_KEY
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "home",
			Name: "Home",
		},
		Database: DatabaseConfig{
			Path:        "./data/automation-creator.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "automation-creator",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
		Host: HostConfig{
			Transport:   HostTransportLocal,
			CallTimeout: 60,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-3.5-turbo",
			Temperature: 0.2,
		},
		Creator: CreatorConfig{
			Enabled:         true,
			AutomationsFile: "./data/automations.yaml",
			ResultStore:     ResultStoreMemory,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
			TTL: 3600,
		},
		Submission: SubmissionConfig{
			InitialDelayMS:   1500,
			RetryDelayMS:     1500,
			MaxFetchAttempts: 3,
			Timeout:          120,
		},
		Panel: PanelConfig{
			SidebarTitle: "AI Automation",
			SidebarIcon:  "mdi:robot",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "automation_creator",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AUTOCREATOR_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("AUTOCREATOR_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("AUTOCREATOR_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AUTOCREATOR_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AUTOCREATOR_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("AUTOCREATOR_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("AUTOCREATOR_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("AUTOCREATOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// LLM; OPENAI_API_KEY is accepted when nothing else sets the key
	if v := os.Getenv("AUTOCREATOR_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AUTOCREATOR_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	// Redis
	if v := os.Getenv("AUTOCREATOR_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("AUTOCREATOR_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch c.Host.Transport {
	case HostTransportLocal, HostTransportMQTT:
	default:
		errs = append(errs, fmt.Sprintf("host.transport must be %q or %q", HostTransportLocal, HostTransportMQTT))
	}

	for i, e := range c.Host.Entities {
		if !strings.Contains(e.EntityID, ".") {
			errs = append(errs, fmt.Sprintf("host.entities[%d].entity_id %q must be domain.object_id", i, e.EntityID))
		}
	}

	switch c.Creator.ResultStore {
	case ResultStoreMemory, ResultStoreRedis:
	default:
		errs = append(errs, fmt.Sprintf("creator.result_store must be %q or %q", ResultStoreMemory, ResultStoreRedis))
	}
	if c.Creator.ResultStore == ResultStoreRedis && c.Redis.URL == "" {
		errs = append(errs, "redis.url is required when creator.result_store is redis")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}

	// At least one retry after the initial delay is required so a slow
	// backend still has a chance to publish its result.
	if c.Submission.MaxFetchAttempts < 2 {
		errs = append(errs, "submission.max_fetch_attempts must be at least 2")
	}
	if c.Submission.InitialDelayMS < 0 || c.Submission.RetryDelayMS < 0 {
		errs = append(errs, "submission delays must not be negative")
	}
	if c.Submission.Timeout <= 0 {
		errs = append(errs, "submission.timeout must be positive")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	// The panel is admin-only; a weak secret would let anyone forge tokens
	// and write automations into the host.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set AUTOCREATOR_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetCallTimeout returns the remote host call timeout as a Duration.
func (c *Config) GetCallTimeout() time.Duration {
	return time.Duration(c.Host.CallTimeout) * time.Second
}

// GetSubmissionTimeout returns the per-submission timeout as a Duration.
func (c *Config) GetSubmissionTimeout() time.Duration {
	return time.Duration(c.Submission.Timeout) * time.Second
}

// GetRedisTTL returns the result store TTL as a Duration.
func (c *Config) GetRedisTTL() time.Duration {
	return time.Duration(c.Redis.TTL) * time.Second
}
