package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Policy        PolicyConfig        `mapstructure:"policy"`
	LLM           LLMConfig           `mapstructure:"llm"`
	RAG           RAGConfig           `mapstructure:"rag"`
	Chat          ChatConfig          `mapstructure:"chat"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	BCryptCost           int           `mapstructure:"bcrypt_cost"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PolicyConfig selects the policy decision point. Mode "remote" talks to an
// external PDP, "local" evaluates the built-in role table against the users table.
type PolicyConfig struct {
	Mode        string        `mapstructure:"mode"`
	PDPURL      string        `mapstructure:"pdp_url"`
	APIURL      string        `mapstructure:"api_url"`
	APIKey      string        `mapstructure:"api_key"`
	Project     string        `mapstructure:"project"`
	Environment string        `mapstructure:"environment"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RAGConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	BucketID string        `mapstructure:"bucket_id"`
	Limit    int           `mapstructure:"limit"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ChatConfig struct {
	StepBudget         int           `mapstructure:"step_budget"`
	SessionWindow      time.Duration `mapstructure:"session_window"`
	SaveTimeout        time.Duration `mapstructure:"save_timeout"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
}

// ----------------- DEFAULTS -----------------

const (
	DefaultStepBudget    = 10
	DefaultSessionWindow = time.Hour
	DefaultModel         = "gemini-2.5-pro-exp-03-25"
	DefaultRAGBaseURL    = "https://api.groundx.ai/api/v1"
	DefaultPDPURL        = "https://cloudpdp.api.permit.io"
	DefaultPolicyAPIURL  = "https://api.permit.io"
)

// ApplyDefaults fills zero values so that a partial config file still runs.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3004
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 30 * time.Second
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Security.AccessTokenDuration == 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Security.RefreshTokenDuration == 0 {
		c.Security.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Policy.Mode == "" {
		c.Policy.Mode = "local"
	}
	if c.Policy.PDPURL == "" {
		c.Policy.PDPURL = DefaultPDPURL
	}
	if c.Policy.APIURL == "" {
		c.Policy.APIURL = DefaultPolicyAPIURL
	}
	if c.Policy.Timeout == 0 {
		c.Policy.Timeout = 5 * time.Second
	}
	if c.Policy.CacheTTL == 0 {
		c.Policy.CacheTTL = time.Minute
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 2 * time.Minute
	}
	if c.RAG.BaseURL == "" {
		c.RAG.BaseURL = DefaultRAGBaseURL
	}
	if c.RAG.Limit == 0 {
		c.RAG.Limit = 5
	}
	if c.RAG.Timeout == 0 {
		c.RAG.Timeout = 10 * time.Second
	}
	if c.Chat.StepBudget == 0 {
		c.Chat.StepBudget = DefaultStepBudget
	}
	if c.Chat.SessionWindow == 0 {
		c.Chat.SessionWindow = DefaultSessionWindow
	}
	if c.Chat.SaveTimeout == 0 {
		c.Chat.SaveTimeout = 10 * time.Second
	}
	if c.Chat.RateLimitPerMinute == 0 {
		c.Chat.RateLimitPerMinute = 30
	}
	if c.Chat.RateLimitBurst == 0 {
		c.Chat.RateLimitBurst = 5
	}
}

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds the configuration for container deployments.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 3004),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 30*time.Second),
			OpenAPIPath:       getEnv("OPENAPI_PATH", "./api/openapi.yml"),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			AccessTokenSecret:    getEnv("JWT_ACCESS_SECRET", ""),
			RefreshTokenSecret:   getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Policy: PolicyConfig{
			Mode:        getEnv("POLICY_MODE", "remote"),
			PDPURL:      getEnv("PERMIT_PDP_URL", DefaultPDPURL),
			APIURL:      getEnv("PERMIT_API_URL", DefaultPolicyAPIURL),
			APIKey:      getEnv("PERMIT_API_KEY", ""),
			Project:     getEnv("PERMIT_PROJECT", "default"),
			Environment: getEnv("PERMIT_ENV", "production"),
			Timeout:     getEnvAsDuration("PERMIT_TIMEOUT", 5*time.Second),
			CacheTTL:    getEnvAsDuration("PERMIT_CACHE_TTL", time.Minute),
		},
		LLM: LLMConfig{
			BaseURL:   getEnv("LLM_BASE_URL", ""),
			APIKey:    getEnv("LLM_API_KEY", ""),
			Model:     getEnv("LLM_MODEL", DefaultModel),
			MaxTokens: getEnvAsInt("LLM_MAX_TOKENS", 0),
			Timeout:   getEnvAsDuration("LLM_TIMEOUT", 2*time.Minute),
		},
		RAG: RAGConfig{
			BaseURL:  getEnv("GROUNDX_BASE_URL", DefaultRAGBaseURL),
			APIKey:   getEnv("GROUNDX_API_KEY", ""),
			BucketID: getEnv("GROUNDX_BUCKET_ID", ""),
			Limit:    getEnvAsInt("GROUNDX_RESULT_LIMIT", 5),
			Timeout:  getEnvAsDuration("GROUNDX_TIMEOUT", 10*time.Second),
		},
		Chat: ChatConfig{
			StepBudget:         getEnvAsInt("CHAT_STEP_BUDGET", DefaultStepBudget),
			SessionWindow:      getEnvAsDuration("CHAT_SESSION_WINDOW", DefaultSessionWindow),
			SaveTimeout:        getEnvAsDuration("CHAT_SAVE_TIMEOUT", 10*time.Second),
			RateLimitPerMinute: getEnvAsInt("CHAT_RATE_LIMIT_PER_MINUTE", 30),
			RateLimitBurst:     getEnvAsInt("CHAT_RATE_LIMIT_BURST", 5),
		},
	}

	if frontend := getEnv("FRONTEND_URL", ""); frontend != "" {
		cfg.Server.AllowedOrigins += "," + frontend
	}

	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Policy.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("policy config: %v", err))
	}

	if err := c.Chat.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("chat config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

// Origins returns the trimmed list of allowed CORS origins.
func (c *ServerConfig) Origins() []string {
	var out []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.AccessTokenSecret) < 32 {
		return errors.New("access_token_secret must be at least 32 characters")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return errors.New("refresh_token_secret must be at least 32 characters")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *PolicyConfig) Validate() error {
	switch c.Mode {
	case "local":
		return nil
	case "remote":
		if c.APIKey == "" {
			return errors.New("api_key is required in remote mode")
		}
		if _, err := url.ParseRequestURI(c.PDPURL); err != nil {
			return fmt.Errorf("invalid pdp_url: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
}

func (c *ChatConfig) Validate() error {
	if c.StepBudget < 1 {
		return errors.New("step_budget must be positive")
	}
	if c.SessionWindow <= 0 {
		return errors.New("session_window must be positive")
	}
	return nil
}
