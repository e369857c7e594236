package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"production" validate:"required"`

	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`

	Source struct {
		Backend   string        `yaml:"backend" default:"csv" validate:"oneof=csv clickhouse"`
		CSVDir    string        `yaml:"csv_dir" default:"data/source"`
		CacheTTL  time.Duration `yaml:"cache_ttl" default:"5m"`
		CacheSize int           `yaml:"cache_size" default:"1024" validate:"gte=0"`
	} `yaml:"source"`

	Cohorts struct {
		Dir string `yaml:"dir" default:"data/cohorts"`
	} `yaml:"cohorts"`

	Storage struct {
		Backend    string `yaml:"backend" default:"file" validate:"oneof=file sqlite"`
		BaseDir    string `yaml:"base_dir" default:"data/derived"`
		SQLitePath string `yaml:"sqlite_path" default:"data/derived/indicache.db"`
	} `yaml:"storage"`

	Engine struct {
		MaxWorkers         int           `yaml:"max_workers" default:"4" validate:"gte=1,lte=64"`
		TaskTimeout        time.Duration `yaml:"task_timeout" default:"2m"`
		MinLookback        int           `yaml:"min_lookback" default:"30" validate:"gte=1"`
		IORetryAttempts    int           `yaml:"io_retry_attempts" default:"3" validate:"gte=1,lte=10"`
		IORetryBackoff     time.Duration `yaml:"io_retry_backoff" default:"250ms"`
		FailureRateCeiling float64       `yaml:"failure_rate_ceiling" default:"0.2" validate:"gte=0,lte=1"`
	} `yaml:"engine"`

	Indicators struct {
		Enabled    []string `yaml:"enabled" default:"[\"sma\",\"ema\",\"macd\",\"rsi\"]" validate:"min=1"`
		SMAPeriods []int    `yaml:"sma_periods"`
		EMAPeriods []int    `yaml:"ema_periods"`
		WMAPeriods []int    `yaml:"wma_periods"`
		RSIPeriod  int      `yaml:"rsi_period"`
		PVPeriods  []int    `yaml:"pv_periods"`
	} `yaml:"indicators"`

	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"market"`
		Table            string        `yaml:"table" default:"daily_bars"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`

	Lock struct {
		Enabled bool          `yaml:"enabled"`
		Host    string        `yaml:"host" default:"localhost"`
		Port    int           `yaml:"port" default:"6379"`
		DB      int           `yaml:"db"`
		Prefix  string        `yaml:"prefix" default:"indicache"`
		TTL     time.Duration `yaml:"ttl" default:"30m"`
	} `yaml:"lock"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"indicache.run-reports"`
		Compression  string   `yaml:"compression" default:"gzip"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		MaxAttempts  int      `yaml:"max_attempts" default:"3"`
	} `yaml:"kafka"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
}

var validate = validator.New()

// Load reads a YAML configuration file, applies defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default returns a configuration with only defaults applied.
func Default() (*Config, error) {
	return Parse([]byte("{}"))
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("INDICACHE_DATA_DIR"); v != "" {
		c.Storage.BaseDir = v
	}
	if v := os.Getenv("INDICACHE_SOURCE_DIR"); v != "" {
		c.Source.CSVDir = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if host, port, ok := strings.Cut(v, ":"); ok {
			c.Lock.Host = host
			if p, err := strconv.Atoi(port); err == nil {
				c.Lock.Port = p
			}
		} else {
			c.Lock.Host = v
		}
	}
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.MaxWorkers = n
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags plus cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Source.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when source.backend is clickhouse")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka.enabled is true")
	}
	return nil
}
