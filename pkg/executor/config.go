package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quantra/pkg/confkit"
)

// Config controls runtime behaviour for the decision oracle adapter.
type Config struct {
	MaxLeverage   int     `yaml:"max_leverage"`
	MinConfidence float64 `yaml:"min_confidence"`
	MaxPositions  int     `yaml:"max_positions"`

	// BatchDecisions switches the oracle contract from one decision for one
	// symbol to exactly one decision per candidate symbol.
	BatchDecisions bool `yaml:"batch_decisions"`

	DecisionInterval time.Duration `yaml:"-"`
	DecisionTimeout  time.Duration `yaml:"-"`

	TemplatePath string `yaml:"template_path"`

	DecisionIntervalRaw string `yaml:"decision_interval"`
	DecisionTimeoutRaw  string `yaml:"decision_timeout"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open executor config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads executor configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/executor.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from a reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read executor config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal executor config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	cfg.expandFields()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxLeverage <= 0 {
		c.MaxLeverage = 20
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = 5
	}
	if strings.TrimSpace(c.DecisionIntervalRaw) == "" {
		c.DecisionIntervalRaw = "3m"
	}
	if strings.TrimSpace(c.DecisionTimeoutRaw) == "" {
		c.DecisionTimeoutRaw = "120s"
	}
	if strings.TrimSpace(c.TemplatePath) == "" {
		c.TemplatePath = "etc/trader_prompt.tmpl"
	}
}

func (c *Config) parseDurations() error {
	interval, err := time.ParseDuration(c.DecisionIntervalRaw)
	if err != nil {
		return fmt.Errorf("executor config: invalid decision_interval %q: %w", c.DecisionIntervalRaw, err)
	}
	if interval <= 0 {
		return fmt.Errorf("executor config: decision_interval must be positive, got %s", interval)
	}
	timeout, err := time.ParseDuration(c.DecisionTimeoutRaw)
	if err != nil {
		return fmt.Errorf("executor config: invalid decision_timeout %q: %w", c.DecisionTimeoutRaw, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("executor config: decision_timeout must be positive, got %s", timeout)
	}
	c.DecisionInterval = interval
	c.DecisionTimeout = timeout
	return nil
}

func (c *Config) expandFields() {
	c.TemplatePath = strings.TrimSpace(os.ExpandEnv(c.TemplatePath))
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.MaxLeverage <= 0 {
		return errors.New("executor config: max_leverage must be positive")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("executor config: min_confidence must be between 0 and 1")
	}
	if c.MaxPositions <= 0 {
		return errors.New("executor config: max_positions must be positive")
	}
	if c.TemplatePath == "" {
		return errors.New("executor config: template_path is required")
	}
	return nil
}
