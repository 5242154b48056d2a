package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/Varamadon/auto-refactor/internal/logger"
)

// Config holds the application configuration
type Config struct {
	LLM      LLMConfig
	Server   ServerConfig
	History  HistoryConfig
	Executor ExecutorConfig
	Log      LogConfig
}

// LLMConfig holds the brain configuration
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Address joins host and port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// HistoryConfig selects where conversation logs are kept.
type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// ExecutorConfig selects how commands reach the remote refactoring tool.
type ExecutorConfig struct {
	Transport    string        `mapstructure:"transport"`
	MCPTransport string        `mapstructure:"mcp_transport"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	TransportHTTP = "http"
	TransportMCP  = "mcp"

	MCPTransportSSE            = "sse"
	MCPTransportStreamableHTTP = "streamable_http"
)

func setDefaults() {
	viper.SetDefault("llm.provider", ProviderOpenAI)
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.system_prompt", "")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("history.backend", BackendMemory)
	viper.SetDefault("history.path", "history.db")
	viper.SetDefault("executor.transport", TransportHTTP)
	viper.SetDefault("executor.mcp_transport", MCPTransportStreamableHTTP)
	viper.SetDefault("executor.timeout", 30*time.Second)
	viper.SetDefault("log.level", "info")
}

// Load loads the configuration from the file named by CONFIG_PATH, or from
// config.yaml in the working directory. Without a config.yaml the defaults
// and AUTOREFACTOR_* environment variables apply.
func Load() (*Config, error) {
	viper.Reset()
	setDefaults()

	viper.SetEnvPrefix("AUTOREFACTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	explicit := os.Getenv("CONFIG_PATH")
	if explicit != "" {
		viper.SetConfigFile(explicit)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, err
		}
		logger.L.Info("no config file found, using defaults")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects values no component knows how to serve.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	switch c.History.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("unsupported history backend %q", c.History.Backend)
	}
	switch c.Executor.Transport {
	case TransportHTTP:
	case TransportMCP:
		switch c.Executor.MCPTransport {
		case MCPTransportSSE, MCPTransportStreamableHTTP:
		default:
			return fmt.Errorf("unsupported mcp transport %q", c.Executor.MCPTransport)
		}
	default:
		return fmt.Errorf("unsupported executor transport %q", c.Executor.Transport)
	}
	return nil
}

// WatchLogLevel re-applies log.level whenever the loaded config file changes.
func WatchLogLevel() {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		lvl := viper.GetString("log.level")
		logger.SetLevel(lvl)
		logger.L.Info("config changed, log level applied", "file", e.Name, "level", lvl)
	})
	viper.WatchConfig()
}
