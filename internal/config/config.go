// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Agent() AgentConfig
	LLM() LLMRouterConfig

	// CLI flag setters
	SetBrowserHeadless(bool)
	SetAgentMaxSteps(int)
	SetDatabaseURL(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg DatabaseConfig  `mapstructure:"database" yaml:"database"`
	BrowserCfg  BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	AgentCfg    AgentConfig     `mapstructure:"agent" yaml:"agent"`
	LLMCfg      LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Agent() AgentConfig       { return c.AgentCfg }
func (c *Config) LLM() LLMRouterConfig     { return c.LLMCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetAgentMaxSteps(n int)    { c.AgentCfg.MaxSteps = n }
func (c *Config) SetDatabaseURL(u string)   { c.DatabaseCfg.URL = u }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the run-history database connection details. An empty
// URL disables persistence entirely.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the managed browser session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	StabilizeWait     time.Duration `mapstructure:"stabilize_wait" yaml:"stabilize_wait"`
	TextCap           int           `mapstructure:"text_cap" yaml:"text_cap"`
}

// AgentConfig carries every tunable threshold of the decision loop. The
// values mirror the ones the system was tuned with; none of them is load
// bearing beyond "worked well in practice", so they are configuration, not
// constants.
type AgentConfig struct {
	MaxSteps          int           `mapstructure:"max_steps" yaml:"max_steps"`
	MaxPlanIterations int           `mapstructure:"max_plan_iterations" yaml:"max_plan_iterations"`
	StepDelay         time.Duration `mapstructure:"step_delay" yaml:"step_delay"`

	// Strategic analysis
	AnalysisWindow      int     `mapstructure:"analysis_window" yaml:"analysis_window"`
	LoopWindow          int     `mapstructure:"loop_window" yaml:"loop_window"`
	StagnationThreshold int     `mapstructure:"stagnation_threshold" yaml:"stagnation_threshold"`
	FailureRateLimit    float64 `mapstructure:"failure_rate_limit" yaml:"failure_rate_limit"`
	SelectorRepeatLimit int     `mapstructure:"selector_repeat_limit" yaml:"selector_repeat_limit"`
	ActionRepeatLimit   int     `mapstructure:"action_repeat_limit" yaml:"action_repeat_limit"`

	// Drift detection
	ContentDeltaLimit float64 `mapstructure:"content_delta_limit" yaml:"content_delta_limit"`
	SoftFailureStreak int     `mapstructure:"soft_failure_streak" yaml:"soft_failure_streak"`

	// Goal satisfaction
	KeywordDensity      float64 `mapstructure:"keyword_density" yaml:"keyword_density"`
	StrongDensity       float64 `mapstructure:"strong_density" yaml:"strong_density"`
	MinContentLength    int     `mapstructure:"min_content_length" yaml:"min_content_length"`
	StrongContentLength int     `mapstructure:"strong_content_length" yaml:"strong_content_length"`

	// Element matching
	MatchThreshold float64 `mapstructure:"match_threshold" yaml:"match_threshold"`
	ButtonBoost    float64 `mapstructure:"button_boost" yaml:"button_boost"`

	// Long-page exploration
	LongPageTextLength   int `mapstructure:"long_page_text_length" yaml:"long_page_text_length"`
	LongPageElementCount int `mapstructure:"long_page_element_count" yaml:"long_page_element_count"`

	// Oracle prompt bounds
	MaxPromptElements int `mapstructure:"max_prompt_elements" yaml:"max_prompt_elements"`
	MaxPromptHistory  int `mapstructure:"max_prompt_history" yaml:"max_prompt_history"`

	// Deliberative goal planning (draft, critique, refine)
	Deliberation bool `mapstructure:"deliberation" yaml:"deliberation"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini     LLMProvider = "gemini"
	ProviderGeminiHTTP LLMProvider = "gemini_http"
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	RequestTimeout       time.Duration             `mapstructure:"request_timeout" yaml:"request_timeout"`
	RequestsPerSecond    float64                   `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "wayfinder")
	v.SetDefault("logger.log_file", "wayfinder.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.action_timeout", "20s")
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.stabilize_wait", "500ms")
	v.SetDefault("browser.text_cap", 4000)

	// -- Agent --
	v.SetDefault("agent.max_steps", 20)
	v.SetDefault("agent.max_plan_iterations", 5)
	v.SetDefault("agent.step_delay", "1s")
	v.SetDefault("agent.analysis_window", 6)
	v.SetDefault("agent.loop_window", 5)
	v.SetDefault("agent.stagnation_threshold", 4)
	v.SetDefault("agent.failure_rate_limit", 0.5)
	v.SetDefault("agent.selector_repeat_limit", 2)
	v.SetDefault("agent.action_repeat_limit", 3)
	v.SetDefault("agent.content_delta_limit", 0.10)
	v.SetDefault("agent.soft_failure_streak", 2)
	v.SetDefault("agent.keyword_density", 0.80)
	v.SetDefault("agent.strong_density", 0.90)
	v.SetDefault("agent.min_content_length", 400)
	v.SetDefault("agent.strong_content_length", 600)
	v.SetDefault("agent.match_threshold", 0.5)
	v.SetDefault("agent.button_boost", 1.1)
	v.SetDefault("agent.long_page_text_length", 800)
	v.SetDefault("agent.long_page_element_count", 5)
	v.SetDefault("agent.max_prompt_elements", 10)
	v.SetDefault("agent.max_prompt_history", 5)
	v.SetDefault("agent.deliberation", false)

	// -- LLM --
	v.SetDefault("llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-2.5-pro")
	v.SetDefault("llm.request_timeout", "30s")
	v.SetDefault("llm.requests_per_second", 1.0)
}

// AddConfigPaths registers the search locations for the config file: the
// working directory first, then the user's config directory.
func AddConfigPaths(v *viper.Viper) {
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "wayfinder"))
	}
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	_ = v.BindEnv("database.url", "WAYFINDER_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the conventional env var for model API keys.
	for name, m := range cfg.LLMCfg.Models {
		if m.APIKey == "" {
			m.APIKey = os.Getenv("GEMINI_API_KEY")
			cfg.LLMCfg.Models[name] = m
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.AgentCfg.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.AgentCfg.MaxPlanIterations <= 0 {
		return fmt.Errorf("agent.max_plan_iterations must be a positive integer")
	}
	if c.AgentCfg.AnalysisWindow <= 0 || c.AgentCfg.LoopWindow <= 0 {
		return fmt.Errorf("agent analysis and loop windows must be positive")
	}
	if c.AgentCfg.FailureRateLimit < 0 || c.AgentCfg.FailureRateLimit > 1 {
		return fmt.Errorf("agent.failure_rate_limit must be between 0.0 and 1.0")
	}
	if c.AgentCfg.ContentDeltaLimit < 0 || c.AgentCfg.ContentDeltaLimit > 1 {
		return fmt.Errorf("agent.content_delta_limit must be between 0.0 and 1.0")
	}
	if c.AgentCfg.KeywordDensity < 0 || c.AgentCfg.KeywordDensity > 1 ||
		c.AgentCfg.StrongDensity < 0 || c.AgentCfg.StrongDensity > 1 {
		return fmt.Errorf("agent keyword densities must be between 0.0 and 1.0")
	}
	if c.BrowserCfg.ActionTimeout <= 0 || c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be positive durations")
	}
	return nil
}
