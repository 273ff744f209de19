package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backend modes.
const (
	StoreModeHTTP   = "http"
	StoreModeSheets = "sheets"
)

type Config struct {
	Store struct {
		Mode string `yaml:"mode"`

		BaseURL            string `yaml:"base_url"`
		APIKey             string `yaml:"api_key"`
		Prefiltered        bool   `yaml:"prefiltered"`
		ConditionalUpdates bool   `yaml:"conditional_updates"`
		TimeoutSeconds     int    `yaml:"timeout_seconds"`
		CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`

		Sheets struct {
			CredentialsFile string `yaml:"credentials_file"`
			SpreadsheetID   string `yaml:"spreadsheet_id"`
			SheetName       string `yaml:"sheet_name"`
		} `yaml:"sheets"`
	} `yaml:"store"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Poll struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"poll"`

	Notify struct {
		Enabled bool `yaml:"enabled"`

		SMTP struct {
			Host         string `yaml:"host"`
			Port         int    `yaml:"port"`
			Username     string `yaml:"username"`
			Password     string `yaml:"password"`
			From         string `yaml:"from"`
			OwnerAddress string `yaml:"owner_address"`
		} `yaml:"smtp"`

		Telegram struct {
			BotToken string `yaml:"bot_token"`
			ChatID   int64  `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"notify"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Session struct {
		TimeoutMinutes int `yaml:"timeout_minutes"`
	} `yaml:"session"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Audit struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"audit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Store.Mode == "" {
		cfg.Store.Mode = StoreModeHTTP
	}
	if cfg.Store.Mode != StoreModeHTTP && cfg.Store.Mode != StoreModeSheets {
		return nil, fmt.Errorf("unknown store mode %q", cfg.Store.Mode)
	}
	if cfg.Store.Mode == StoreModeHTTP && cfg.Store.BaseURL == "" {
		return nil, fmt.Errorf("store.base_url is required for http mode")
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Audit.Enabled {
		if cfg.Audit.Path == "" {
			cfg.Audit.Path = "data/audit.db"
		}
		if err = os.MkdirAll(filepath.Dir(cfg.Audit.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) PollInterval() time.Duration {
	if c.Poll.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

func (c *Config) StoreTimeout() time.Duration {
	if c.Store.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Store.TimeoutSeconds) * time.Second
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Session.TimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}
