package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// DefaultSearchTimeout bounds a query execution when the config omits it.
const DefaultSearchTimeout = 30 * time.Second

type Config struct {
	ConfDir       string         `toml:"confdir"`
	Backend       string         `toml:"backend"`
	Extraction    *bool          `toml:"extraction,omitempty"`
	SearchTimeout Duration       `toml:"search_timeout"`
	Defaults      map[string]any `toml:"defaults,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// ExtractionEnabled reports whether preview and download are served.
func (c *Config) ExtractionEnabled() bool {
	return c.Extraction == nil || *c.Extraction
}

// DefaultOverrides returns the [defaults] table as strings, the form the
// settings resolver consumes.
func (c *Config) DefaultOverrides() map[string]string {
	out := make(map[string]string, len(c.Defaults))
	for k, v := range c.Defaults {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func GetDefaultConfig() (*Config, error) {
	confDir, err := GetDefaultIndexConfDir()
	if err != nil {
		return nil, fmt.Errorf("getting default index config directory: %w", err)
	}
	return &Config{
		ConfDir:       confDir,
		Backend:       "bleve",
		SearchTimeout: Duration{DefaultSearchTimeout},
		Defaults:      make(map[string]any),
	}, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.ConfDir == "" {
		confDir, err := GetDefaultIndexConfDir()
		if err != nil {
			return nil, fmt.Errorf("getting default index config directory: %w", err)
		}
		config.ConfDir = confDir
	}
	config.ConfDir = ExpandHome(config.ConfDir)

	if config.Backend == "" {
		config.Backend = "bleve"
	}

	if config.SearchTimeout.Duration <= 0 {
		config.SearchTimeout = Duration{DefaultSearchTimeout}
	}

	if config.Defaults == nil {
		config.Defaults = make(map[string]any)
	}

	return &config, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	confDir := c.ConfDir
	if confDir == "" {
		var err error
		confDir, err = GetDefaultIndexConfDir()
		if err != nil {
			return fmt.Errorf("getting default index config directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.config/fedsearch/index", confDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// GetConfigDir returns the configuration directory for fedsearch
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "fedsearch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultIndexConfDir returns the default configuration root of the
// primary index.
func GetDefaultIndexConfDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "index"), nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
