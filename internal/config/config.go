package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	UI     UIConfig     `mapstructure:"ui"`
	API    APIConfig    `mapstructure:"api"`
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Log    LogConfig    `mapstructure:"log"`
	Data   DataConfig   `mapstructure:"data"`
}

type UIConfig struct {
	Theme        string `mapstructure:"theme"`
	MouseEnabled bool   `mapstructure:"mouse_enabled"`
	Tooltips     bool   `mapstructure:"tooltips"`
	// PopupWidth is the width of the filter popup in cells
	PopupWidth int `mapstructure:"popup_width"`
	// PopupMinRight is the smallest column the popup's right edge may sit at
	PopupMinRight int  `mapstructure:"popup_min_right"`
	ConfirmDelete bool `mapstructure:"confirm_delete"`
	WatchFile     bool `mapstructure:"watch_file"`
}

type APIConfig struct {
	// BaseURL of the filter backend. Empty starts an embedded backend.
	BaseURL string `mapstructure:"base_url"`
	// RequestTimeout of zero means requests never time out
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type DataConfig struct {
	MaxCellDisplayLength int    `mapstructure:"max_cell_display_length"`
	Delimiter            string `mapstructure:"delimiter"`
}

// GetDefaults returns a Config with all default values
func GetDefaults() *Config {
	return &Config{
		UI: UIConfig{
			Theme:         "default",
			MouseEnabled:  true,
			Tooltips:      true,
			PopupWidth:    44,
			PopupMinRight: 44,
			ConfirmDelete: true,
			WatchFile:     true,
		},
		API: APIConfig{
			BaseURL:        "",
			RequestTimeout: 0,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:5000",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   defaultDataPath("filters.db"),
			DSN:    "",
		},
		Log: LogConfig{
			File:  defaultCachePath("lazysheet.log"),
			Level: "info",
		},
		Data: DataConfig{
			MaxCellDisplayLength: 40,
			Delimiter:            "",
		},
	}
}

// Load loads configuration from files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from an explicit file, or from the standard
// search path when path is empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 1. User config directory
		if configDir, err := GetConfigPath(); err == nil {
			v.AddConfigPath(configDir)
		}
		// 2. Current directory
		v.AddConfigPath(".")
		// 3. Default config directory
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("LAZYSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := GetDefaults()
	v.SetDefault("ui.theme", d.UI.Theme)
	v.SetDefault("ui.mouse_enabled", d.UI.MouseEnabled)
	v.SetDefault("ui.tooltips", d.UI.Tooltips)
	v.SetDefault("ui.popup_width", d.UI.PopupWidth)
	v.SetDefault("ui.popup_min_right", d.UI.PopupMinRight)
	v.SetDefault("ui.confirm_delete", d.UI.ConfirmDelete)
	v.SetDefault("ui.watch_file", d.UI.WatchFile)
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.request_timeout", d.API.RequestTimeout)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("data.max_cell_display_length", d.Data.MaxCellDisplayLength)
	v.SetDefault("data.delimiter", d.Data.Delimiter)

	// Read config (it's okay if file doesn't exist, we have defaults)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.UI.PopupWidth < 20 {
		return fmt.Errorf("ui.popup_width must be at least 20, got %d", c.UI.PopupWidth)
	}
	if c.API.RequestTimeout < 0 {
		return fmt.Errorf("api.request_timeout must not be negative")
	}
	return nil
}

// GetConfigPath returns the user config directory path
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazysheet"), nil
}

func defaultDataPath(name string) string {
	if dir, err := GetConfigPath(); err == nil {
		return filepath.Join(dir, name)
	}
	return name
}

func defaultCachePath(name string) string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "lazysheet", name)
	}
	return name
}
