package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig                `yaml:"app"`
	Log           LogConfig                `yaml:"log"`
	Weather       WeatherConfig            `yaml:"weather"`
	KnowledgeBase KnowledgeBaseConfig      `yaml:"knowledge_base"`
	History       HistoryConfig            `yaml:"history"`
	Policy        PolicyConfig             `yaml:"policy"`
	Gateways      map[string]GatewayConfig `yaml:"gateways"`
}

type AppConfig struct {
	Name string `yaml:"name"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	EventsFile string `yaml:"events_file"`
}

type WeatherConfig struct {
	DefaultCity string             `yaml:"default_city"`
	Cities      map[string]float64 `yaml:"cities"`
}

type KnowledgeBaseConfig struct {
	Path string `yaml:"path"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type PolicyConfig struct {
	DisabledTools []string `yaml:"disabled_tools"`
	DenyArguments []string `yaml:"deny_arguments"`
}

type GatewayConfig struct {
	Token         string  `yaml:"token"`
	Enabled       bool    `yaml:"enabled"`
	RatePerMinute float64 `yaml:"rate_per_minute"`
}

const defaultRatePerMinute = 20

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App:     AppConfig{Name: "toolagent"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Weather: WeatherConfig{DefaultCity: "Paris"},
		History: HistoryConfig{Path: "data/history.db"},
		Gateways: map[string]GatewayConfig{
			"telegram": {RatePerMinute: defaultRatePerMinute},
			"discord":  {RatePerMinute: defaultRatePerMinute},
		},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error.
// Variables from a .env file in the working directory are loaded first and
// the TOOLAGENT_LOG_LEVEL, TOOLAGENT_LOG_FORMAT, TELEGRAM_TOKEN and
// DISCORD_TOKEN variables override the file.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills values a partial file leaves at zero.
func (c *Config) applyDefaults() {
	if c.Weather.DefaultCity == "" {
		c.Weather.DefaultCity = "Paris"
	}
	if c.Gateways == nil {
		c.Gateways = make(map[string]GatewayConfig)
	}
	for name, gw := range c.Gateways {
		if gw.RatePerMinute == 0 {
			gw.RatePerMinute = defaultRatePerMinute
			c.Gateways[name] = gw
		}
	}
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnv("TOOLAGENT_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("TOOLAGENT_LOG_FORMAT", c.Log.Format)
	for name, env := range map[string]string{"telegram": "TELEGRAM_TOKEN", "discord": "DISCORD_TOKEN"} {
		if token, ok := os.LookupEnv(env); ok && token != "" {
			gw := c.Gateways[name]
			gw.Token = token
			c.Gateways[name] = gw
		}
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.History.Enabled && c.History.Path == "" {
		return errors.New("config: history.enabled requires history.path")
	}
	for name, gw := range c.Gateways {
		if gw.Enabled && gw.Token == "" {
			return fmt.Errorf("config: gateway %s is enabled but has no token", name)
		}
		if gw.RatePerMinute < 0 {
			return fmt.Errorf("config: gateway %s rate_per_minute must not be negative", name)
		}
	}
	return nil
}

// GetGatewayConfig returns the named gateway config if enabled.
func (c *Config) GetGatewayConfig(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled {
		return gw, true
	}
	return GatewayConfig{}, false
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
