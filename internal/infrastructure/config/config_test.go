package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validJWTSecret is a secret that meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// validConfig returns the defaults with a usable secret, so each test case
// only has to break the field under test.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = validJWTSecret
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
llm:
  model: "gpt-4o-mini"
  temperature: 0.4
submission:
  initial_delay_ms: 500
  retry_delay_ms: 250
  max_fetch_attempts: 5
panel:
  questions:
    - "When?"
    - "What?"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want %q", cfg.LLM.Model, "gpt-4o-mini")
	}
	if cfg.Submission.MaxFetchAttempts != 5 {
		t.Errorf("Submission.MaxFetchAttempts = %d, want 5", cfg.Submission.MaxFetchAttempts)
	}
	if len(cfg.Panel.Questions) != 2 {
		t.Errorf("len(Panel.Questions) = %d, want 2", len(cfg.Panel.Questions))
	}

	// Untouched sections keep their defaults.
	if cfg.Host.Transport != HostTransportLocal {
		t.Errorf("Host.Transport = %q, want %q", cfg.Host.Transport, HostTransportLocal)
	}
	if cfg.Creator.ResultStore != ResultStoreMemory {
		t.Errorf("Creator.ResultStore = %q, want %q", cfg.Creator.ResultStore, ResultStoreMemory)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
api:
  port: 8080
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing site ID", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: "site.id"},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: "api.port"},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: "api.port"},
		{name: "unknown host transport", mutate: func(c *Config) { c.Host.Transport = "websocket" }, wantErr: "host.transport"},
		{
			name: "entity without domain",
			mutate: func(c *Config) {
				c.Host.Entities = []HostEntityConfig{{EntityID: "kitchen_light"}}
			},
			wantErr: "host.entities[0]",
		},
		{name: "unknown result store", mutate: func(c *Config) { c.Creator.ResultStore = "disk" }, wantErr: "creator.result_store"},
		{
			name: "redis store without url",
			mutate: func(c *Config) {
				c.Creator.ResultStore = ResultStoreRedis
				c.Redis.URL = ""
			},
			wantErr: "redis.url",
		},
		{name: "temperature out of range", mutate: func(c *Config) { c.LLM.Temperature = 3 }, wantErr: "llm.temperature"},
		{name: "single fetch attempt", mutate: func(c *Config) { c.Submission.MaxFetchAttempts = 1 }, wantErr: "max_fetch_attempts"},
		{name: "negative delay", mutate: func(c *Config) { c.Submission.RetryDelayMS = -1 }, wantErr: "delays"},
		{name: "zero submission timeout", mutate: func(c *Config) { c.Submission.Timeout = 0 }, wantErr: "submission.timeout"},
		{name: "relative metrics path", mutate: func(c *Config) { c.Metrics.Path = "metrics" }, wantErr: "metrics.path"},
		{name: "metrics path ignored when disabled", mutate: func(c *Config) { c.Metrics.Enabled, c.Metrics.Path = false, "" }},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: "security.jwt.secret"},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: "at least 32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Site.ID = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	for _, want := range []string{"site.id", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Host:       HostConfig{CallTimeout: 20},
		Submission: SubmissionConfig{Timeout: 90},
		Redis:      RedisConfig{TTL: 600},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetCallTimeout(); got != 20*time.Second {
		t.Errorf("GetCallTimeout() = %v, want 20s", got)
	}
	if got := cfg.GetSubmissionTimeout(); got != 90*time.Second {
		t.Errorf("GetSubmissionTimeout() = %v, want 90s", got)
	}
	if got := cfg.GetRedisTTL(); got != 10*time.Minute {
		t.Errorf("GetRedisTTL() = %v, want 10m", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("AUTOCREATOR_DATABASE_PATH", "/custom/path.db")
	t.Setenv("AUTOCREATOR_MQTT_HOST", "mqtt.example.com")
	t.Setenv("AUTOCREATOR_MQTT_USERNAME", "testuser")
	t.Setenv("AUTOCREATOR_MQTT_PASSWORD", "testpass")
	t.Setenv("AUTOCREATOR_API_HOST", "192.168.1.1")
	t.Setenv("AUTOCREATOR_API_PORT", "9000")
	t.Setenv("AUTOCREATOR_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("AUTOCREATOR_LLM_API_KEY", "sk-test")
	t.Setenv("AUTOCREATOR_LLM_MODEL", "gpt-4o")
	t.Setenv("AUTOCREATOR_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("AUTOCREATOR_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"LLM.APIKey", cfg.LLM.APIKey, "sk-test"},
		{"LLM.Model", cfg.LLM.Model, "gpt-4o"},
		{"Redis.URL", cfg.Redis.URL, "redis://cache:6379/1"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
}

func TestApplyEnvOverrides_OpenAIKeyFallback(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("AUTOCREATOR_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	applyEnvOverrides(cfg)

	if cfg.LLM.APIKey != "sk-fallback" {
		t.Errorf("LLM.APIKey = %q, want %q", cfg.LLM.APIKey, "sk-fallback")
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("AUTOCREATOR_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8099 {
		t.Errorf("API.Port = %d, want default 8099", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8099 {
		t.Errorf("defaultConfig API.Port = %d, want 8099", cfg.API.Port)
	}
	if cfg.LLM.Model != "gpt-3.5-turbo" {
		t.Errorf("defaultConfig LLM.Model = %q, want gpt-3.5-turbo", cfg.LLM.Model)
	}
	if cfg.Submission.InitialDelayMS != 1500 || cfg.Submission.MaxFetchAttempts != 3 {
		t.Errorf("defaultConfig Submission = %+v, want 1500ms initial delay and 3 attempts", cfg.Submission)
	}
	if cfg.Creator.InlineResult {
		t.Error("defaultConfig Creator.InlineResult = true, want false")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("defaultConfig Metrics = %+v, want enabled at /metrics", cfg.Metrics)
	}
	if cfg.Panel.SidebarTitle != "AI Automation" {
		t.Errorf("defaultConfig Panel.SidebarTitle = %q", cfg.Panel.SidebarTitle)
	}

	// Defaults plus a secret must pass validation on their own.
	cfg.Security.JWT.Secret = validJWTSecret
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults failed validation: %v", err)
	}
}
