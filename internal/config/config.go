package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Model   ModelConfig   `mapstructure:"model"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Demo    DemoConfig    `mapstructure:"demo"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	TCC     TCCConfig     `mapstructure:"tcc"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type ModelConfig struct {
	Name            string  `mapstructure:"name" validate:"required"`
	MaxTokens       int     `mapstructure:"max_tokens" validate:"min=1,max=2048"`
	Temperature     float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	EnableStreaming bool    `mapstructure:"enable_streaming"`
	WarmupOnStart   bool    `mapstructure:"warmup_on_start"`
}

// RuntimeConfig describes how the local generation runtime is found, started
// and called. Every subprocess has its own timeout.
type RuntimeConfig struct {
	Paths           []string `mapstructure:"paths" validate:"min=1"`
	Transport       string   `mapstructure:"transport" validate:"oneof=cli openai"`
	BaseURL         string   `mapstructure:"base_url"`
	DebugRequests   bool     `mapstructure:"debug_requests"`
	BootstrapScript string   `mapstructure:"bootstrap_script"`
	StartScript     string   `mapstructure:"start_script"`

	VersionTimeout      time.Duration `mapstructure:"version_timeout"`
	ListTimeout         time.Duration `mapstructure:"list_timeout"`
	BootstrapTimeout    time.Duration `mapstructure:"bootstrap_timeout"`
	StartScriptTimeout  time.Duration `mapstructure:"start_script_timeout"`
	SettleDelay         time.Duration `mapstructure:"settle_delay"`
	StartConfirmTimeout time.Duration `mapstructure:"start_confirm_timeout"`
	PullTimeout         time.Duration `mapstructure:"pull_timeout"`
	LoadTimeout         time.Duration `mapstructure:"load_timeout"`
	GenerateTimeout     time.Duration `mapstructure:"generate_timeout"`
	StopTimeout         time.Duration `mapstructure:"stop_timeout"`
}

type DemoConfig struct {
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=MinDelay"`
	WarmupDelay time.Duration `mapstructure:"warmup_delay"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// StorageConfig selects the optional response cache. An empty Type disables
// caching unless a bucket is configured, in which case S3 is used.
type StorageConfig struct {
	Type          string `mapstructure:"type" validate:"omitempty,oneof=memory disk s3 redis"`
	CacheTTL      int    `mapstructure:"cache_ttl" validate:"gte=0"`
	DataDir       string `mapstructure:"data_dir"`
	S3Bucket      string `mapstructure:"s3_bucket"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type TCCConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// CacheTTLDuration returns the cache TTL as a duration.
func (s StorageConfig) CacheTTLDuration() time.Duration {
	return time.Duration(s.CacheTTL) * time.Second
}

// Backend resolves the effective cache backend name, "" meaning disabled.
func (s StorageConfig) Backend() string {
	if s.Type != "" {
		return s.Type
	}
	if s.S3Bucket != "" {
		return "s3"
	}
	return ""
}

// envBindings maps config keys to the environment variables the deployment
// has always used. Keys not listed here are still reachable through
// AutomaticEnv with "." replaced by "_".
var envBindings = map[string]string{
	"model.name":               "MODEL_NAME",
	"model.max_tokens":         "MAX_TOKENS",
	"model.temperature":        "TEMPERATURE",
	"model.enable_streaming":   "ENABLE_STREAMING",
	"model.warmup_on_start":    "WARMUP_ON_START",
	"storage.cache_ttl":        "CACHE_TTL",
	"storage.s3_bucket":        "S3_BUCKET",
	"storage.type":             "STORAGE_TYPE",
	"storage.data_dir":         "STORAGE_DATA_DIR",
	"storage.redis_addr":       "REDIS_ADDR",
	"storage.redis_password":   "REDIS_PASSWORD",
	"storage.redis_db":         "REDIS_DB",
	"server.port":              "PORT",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
	"runtime.paths":            "OLLAMA_PATHS",
	"runtime.transport":        "OLLAMA_TRANSPORT",
	"runtime.base_url":         "OLLAMA_BASE_URL",
	"runtime.debug_requests":   "OLLAMA_DEBUG_REQUESTS",
	"runtime.bootstrap_script": "OLLAMA_BOOTSTRAP_SCRIPT",
	"runtime.start_script":     "OLLAMA_START_SCRIPT",
	"demo.min_delay":           "DEMO_MIN_DELAY",
	"demo.max_delay":           "DEMO_MAX_DELAY",
	"tcc.rules_file":           "TCC_RULES_FILE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("model.name", "llama2:7b")
	v.SetDefault("model.max_tokens", 512)
	v.SetDefault("model.temperature", 0.7)
	v.SetDefault("model.enable_streaming", false)
	v.SetDefault("model.warmup_on_start", false)

	v.SetDefault("runtime.paths", []string{"/usr/local/bin/ollama", "ollama", "/opt/python/ollama", "/var/task/ollama"})
	v.SetDefault("runtime.transport", "cli")
	v.SetDefault("runtime.base_url", "http://localhost:11434/v1")
	v.SetDefault("runtime.debug_requests", false)
	v.SetDefault("runtime.bootstrap_script", "/var/task/start-ollama.sh")
	v.SetDefault("runtime.start_script", "/opt/python/start_ollama.sh")
	v.SetDefault("runtime.version_timeout", "5s")
	v.SetDefault("runtime.list_timeout", "10s")
	v.SetDefault("runtime.bootstrap_timeout", "60s")
	v.SetDefault("runtime.start_script_timeout", "30s")
	v.SetDefault("runtime.settle_delay", "5s")
	v.SetDefault("runtime.start_confirm_timeout", "15s")
	v.SetDefault("runtime.pull_timeout", "300s")
	v.SetDefault("runtime.load_timeout", "60s")
	v.SetDefault("runtime.generate_timeout", "120s")
	v.SetDefault("runtime.stop_timeout", "30s")

	v.SetDefault("demo.min_delay", "500ms")
	v.SetDefault("demo.max_delay", "2s")
	v.SetDefault("demo.warmup_delay", "500ms")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.type", "")
	v.SetDefault("storage.cache_ttl", 3600)
	v.SetDefault("storage.data_dir", "./data/cache")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)

	v.SetDefault("tcc.rules_file", "")
}

// Load reads configuration once at startup. The YAML file is optional; an
// empty path means environment and defaults only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}
