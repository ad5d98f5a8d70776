package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"MarketPulse/pkg/util"
)

type InstrumentConfig struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Universe []InstrumentConfig `yaml:"universe"`
	Series   struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table"`
		QuoteTable       string        `yaml:"quote_table"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"series"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		BatchSize    int           `yaml:"batch_size"`
		BatchBytes   int           `yaml:"batch_bytes"`
		Linger       time.Duration `yaml:"linger"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	Quotes struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		HTTPURL        string        `yaml:"http_url"`
		APIKey         string        `yaml:"api_key"`
		StaleAfter     time.Duration `yaml:"stale_after"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		RateLimitRPS   float64       `yaml:"rate_limit_rps"`
		RateLimitBurst float64       `yaml:"rate_limit_burst"`
	} `yaml:"quotes"`
	Consolidation struct {
		MinObservations int           `yaml:"min_observations"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		StepTimeout     time.Duration `yaml:"step_timeout"`
		CycleTimeout    time.Duration `yaml:"cycle_timeout"`
		FastTTL         time.Duration `yaml:"fast_ttl"`
		StandardTTL     time.Duration `yaml:"standard_ttl"`
		MaxConcurrency  int           `yaml:"max_concurrency"`
	} `yaml:"consolidation"`
	Breaker struct {
		FailureThreshold   int           `yaml:"failure_threshold"`
		RateLimitThreshold int           `yaml:"rate_limit_threshold"`
		Window             time.Duration `yaml:"window"`
		Cooldown           time.Duration `yaml:"cooldown"`
	} `yaml:"breaker"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("QUOTES_API_KEY"); v != "" {
		c.Quotes.APIKey = v
	}
	if v := os.Getenv("UNIVERSE"); v != "" {
		c.Universe = c.Universe[:0]
		for _, s := range strings.Split(v, ",") {
			c.Universe = append(c.Universe, InstrumentConfig{Symbol: strings.TrimSpace(s)})
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Series.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.Redis.Port = util.ParseIntDefault(v, c.Redis.Port)
	}
	if v := os.Getenv("CLICKHOUSE_PORT"); v != "" {
		c.Series.Port = util.ParseIntDefault(v, c.Series.Port)
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Consolidation.MinObservations == 0 {
		c.Consolidation.MinObservations = 180
	}
	if c.Consolidation.StepTimeout == 0 {
		c.Consolidation.StepTimeout = 1250 * time.Millisecond
	}
	if c.Consolidation.CycleTimeout == 0 {
		c.Consolidation.CycleTimeout = 30 * time.Second
	}
	if c.Consolidation.FastTTL == 0 {
		c.Consolidation.FastTTL = time.Minute
	}
	if c.Consolidation.StandardTTL == 0 {
		c.Consolidation.StandardTTL = 15 * time.Minute
	}
	if c.Consolidation.MaxConcurrency == 0 {
		c.Consolidation.MaxConcurrency = 8
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "marketpulse"
	}
	if c.Series.Table == "" {
		c.Series.Table = "indicator_history"
	}
	if c.Series.QuoteTable == "" {
		c.Series.QuoteTable = "daily_closes"
	}
	if c.Quotes.StaleAfter == 0 {
		c.Quotes.StaleAfter = 15 * time.Minute
	}
	if c.Quotes.RateLimitRPS == 0 {
		c.Quotes.RateLimitRPS = 1
	}
	if c.Quotes.RateLimitBurst == 0 {
		c.Quotes.RateLimitBurst = 10
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Universe) == 0 {
		return fmt.Errorf("universe cannot be empty")
	}
	for i, in := range c.Universe {
		if in.Symbol == "" {
			return fmt.Errorf("universe[%d].symbol is required", i)
		}
	}
	if c.Series.Host == "" {
		return fmt.Errorf("series.host is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Consolidation.StepTimeout > c.Consolidation.CycleTimeout {
		return fmt.Errorf("consolidation.step_timeout must not exceed cycle_timeout")
	}
	return nil
}
