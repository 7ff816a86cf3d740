package manager

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quantra/pkg/risk"
	"quantra/pkg/symbols"
)

// Config defines the overall manager configuration schema.
type Config struct {
	Traders    []TraderConfig   `yaml:"traders"`
	Monitoring MonitoringConfig `yaml:"monitoring"`

	baseDir string
}

// TraderConfig describes one autonomous trader: its symbol universe, capital,
// provider bindings and risk policy.
type TraderConfig struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	Symbols          []string      `yaml:"symbols"`
	InitialCapital   float64       `yaml:"initial_capital"`
	ExchangeProvider string        `yaml:"exchange_provider"`
	MarketProvider   string        `yaml:"market_provider"`
	PromptTemplate   string        `yaml:"prompt_template"`
	JournalDir       string        `yaml:"journal_dir"`
	AutoStart        bool          `yaml:"auto_start"`
	DecisionInterval time.Duration `yaml:"-"`
	Risk             risk.Config   `yaml:"risk"`

	DecisionIntervalRaw string `yaml:"decision_interval"`
}

type MonitoringConfig struct {
	UpdateInterval time.Duration `yaml:"-"`

	UpdateIntervalRaw string `yaml:"update_interval"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manager config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file, filepath.Dir(path))
}

// LoadConfigFromReader constructs a Config from a reader with the provided
// base directory used to resolve relative paths.
func LoadConfigFromReader(r io.Reader, baseDir string) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manager config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal manager config: %w", err)
	}
	cfg.baseDir = baseDir

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
	for i := range c.Traders {
		if strings.TrimSpace(c.Traders[i].DecisionIntervalRaw) == "" {
			c.Traders[i].DecisionIntervalRaw = "3m"
		}
		if strings.TrimSpace(c.Traders[i].JournalDir) == "" {
			c.Traders[i].JournalDir = filepath.Join("journal", c.Traders[i].ID)
		}
	}
	if strings.TrimSpace(c.Monitoring.UpdateIntervalRaw) == "" {
		c.Monitoring.UpdateIntervalRaw = "30s"
	}
}

func (c *Config) parseDurations() error {
	for i := range c.Traders {
		d, err := parsePositiveDuration(fmt.Sprintf("traders[%d].decision_interval", i), c.Traders[i].DecisionIntervalRaw)
		if err != nil {
			return err
		}
		c.Traders[i].DecisionInterval = d
	}
	var err error
	c.Monitoring.UpdateInterval, err = parsePositiveDuration("monitoring.update_interval", c.Monitoring.UpdateIntervalRaw)
	if err != nil {
		return err
	}
	return nil
}

func (c *Config) expandFields() {
	for i := range c.Traders {
		c.Traders[i].ID = strings.TrimSpace(c.Traders[i].ID)
		c.Traders[i].Name = strings.TrimSpace(c.Traders[i].Name)
		c.Traders[i].ExchangeProvider = strings.TrimSpace(c.Traders[i].ExchangeProvider)
		c.Traders[i].MarketProvider = strings.TrimSpace(c.Traders[i].MarketProvider)
		c.Traders[i].PromptTemplate = c.resolvePath(c.Traders[i].PromptTemplate)
		c.Traders[i].JournalDir = c.resolvePath(c.Traders[i].JournalDir)
		for j, sym := range c.Traders[i].Symbols {
			c.Traders[i].Symbols[j] = symbols.Normalize(sym)
		}
	}
}

func (c *Config) resolvePath(path string) string {
	path = strings.TrimSpace(os.ExpandEnv(path))
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.baseDir, path)
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if len(c.Traders) == 0 {
		return errors.New("manager config: at least one trader must be defined")
	}

	idSeen := make(map[string]struct{}, len(c.Traders))
	for i, trader := range c.Traders {
		if trader.ID == "" {
			return fmt.Errorf("manager config: traders[%d].id is required", i)
		}
		if _, ok := idSeen[trader.ID]; ok {
			return fmt.Errorf("manager config: duplicate trader id %q", trader.ID)
		}
		idSeen[trader.ID] = struct{}{}
		if trader.Name == "" {
			return fmt.Errorf("manager config: traders[%d].name is required", i)
		}
		if len(trader.Symbols) == 0 {
			return fmt.Errorf("manager config: traders[%d].symbols cannot be empty", i)
		}
		symSeen := make(map[string]struct{}, len(trader.Symbols))
		for _, sym := range trader.Symbols {
			if _, ok := symSeen[sym]; ok {
				return fmt.Errorf("manager config: traders[%d] lists symbol %q twice", i, sym)
			}
			symSeen[sym] = struct{}{}
		}
		if trader.InitialCapital <= 0 {
			return fmt.Errorf("manager config: traders[%d].initial_capital must be positive", i)
		}
		if trader.ExchangeProvider == "" {
			return fmt.Errorf("manager config: traders[%d].exchange_provider is required", i)
		}
		if trader.MarketProvider == "" {
			return fmt.Errorf("manager config: traders[%d].market_provider is required", i)
		}
		if trader.PromptTemplate == "" {
			return fmt.Errorf("manager config: traders[%d].prompt_template is required", i)
		}
		if _, err := os.Stat(trader.PromptTemplate); err != nil {
			return fmt.Errorf("manager config: traders[%d].prompt_template %q not accessible: %w", i, trader.PromptTemplate, err)
		}
		if err := c.Traders[i].Risk.Validate(); err != nil {
			return fmt.Errorf("manager config: traders[%d]: %w", i, err)
		}
	}
	return nil
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("manager config: %s is required", field)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("manager config: invalid %s %q: %w", field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("manager config: %s must be positive, got %s", field, d)
	}
	return d, nil
}

// TraderIDs returns a stable ordered list of trader IDs.
func (c *Config) TraderIDs() []string {
	ids := make([]string, 0, len(c.Traders))
	for _, t := range c.Traders {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}
