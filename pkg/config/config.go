package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/harrisonrobin/outlook-todo/pkg/credential"
	"github.com/harrisonrobin/outlook-todo/pkg/store"
)

const (
	xdgAppName = "outlook-todo"
	configFile = "config.yaml"

	GatewayGraph = "graph"
	GatewayIMAP  = "imap"

	DefaultCalendar = "Tasks"
)

// GraphConfig holds the Azure AD app registration used for Microsoft Graph.
type GraphConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Mailbox      string `mapstructure:"mailbox"`
	BaseURL      string `mapstructure:"base_url"`
}

// IMAPConfig holds the settings of the IMAP gateway.
type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	Mailbox  string `mapstructure:"mailbox"`
}

// Config is the resolved application configuration.
type Config struct {
	Storage  string      `mapstructure:"storage"`
	Gateway  string      `mapstructure:"gateway"`
	Graph    GraphConfig `mapstructure:"graph"`
	IMAP     IMAPConfig  `mapstructure:"imap"`
	Calendar string      `mapstructure:"calendar"`
	Path     string      `mapstructure:"-"`
}

// MissingError lists required settings that have no value.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return "Missing required configuration: " + strings.Join(e.Names, ", ")
}

// GetConfigPath returns ~/.config/outlook-todo/config.yaml.
func GetConfigPath() (string, error) {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, xdgAppName, configFile), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName, configFile), nil
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"storage":             "OUTLOOK_TODO_STORAGE",
	"gateway":             "OUTLOOK_TODO_GATEWAY",
	"calendar":            "GOOGLE_CALENDAR",
	"graph.tenant_id":     "MS_TENANT_ID",
	"graph.client_id":     "MS_CLIENT_ID",
	"graph.client_secret": "MS_CLIENT_SECRET",
	"graph.mailbox":       "OUTLOOK_TODO_MAILBOX",
	"graph.base_url":      "MS_GRAPH_URL",
	"imap.host":           "IMAP_HOST",
	"imap.port":           "IMAP_PORT",
	"imap.username":       "IMAP_USERNAME",
	"imap.password":       "IMAP_PASSWORD",
	"imap.tls":            "IMAP_TLS",
	"imap.mailbox":        "IMAP_MAILBOX",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("storage", store.DefaultPath)
	v.SetDefault("gateway", GatewayGraph)
	v.SetDefault("calendar", DefaultCalendar)
	v.SetDefault("graph.mailbox", "me")
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.mailbox", "INBOX")
	for key, env := range envBindings {
		// BindEnv only fails without arguments.
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load reads envFile (a .env file, optional), then the YAML file at path
// (optional; "" means GetConfigPath) and the environment. Environment
// variables win over the file.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, err
		}
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	cfg.Path = path
	cfg.Gateway = strings.ToLower(strings.TrimSpace(cfg.Gateway))

	storage, err := absPath(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("invalid storage path %q: %w", cfg.Storage, err)
	}
	cfg.Storage = storage
	return &cfg, nil
}

// ResolveSecrets fills secrets that are not set in the file or environment
// from the OS keyring. Missing keyring entries are not an error here;
// Validate reports them.
func (c *Config) ResolveSecrets() error {
	lookup := func(dst *string, key string) error {
		if *dst != "" {
			return nil
		}
		secret, err := credential.Get(key)
		if err != nil {
			if errors.Is(err, credential.ErrNotFound) {
				return nil
			}
			return err
		}
		*dst = secret
		return nil
	}
	switch c.Gateway {
	case GatewayIMAP:
		return lookup(&c.IMAP.Password, credential.IMAPPassword)
	default:
		return lookup(&c.Graph.ClientSecret, credential.GraphClientSecret)
	}
}

// Validate checks that the selected gateway has every setting it needs.
func (c *Config) Validate() error {
	var missing []string
	check := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	switch c.Gateway {
	case GatewayGraph:
		check(c.Graph.TenantID, "MS_TENANT_ID")
		check(c.Graph.ClientID, "MS_CLIENT_ID")
		check(c.Graph.ClientSecret, "MS_CLIENT_SECRET")
	case GatewayIMAP:
		check(c.IMAP.Host, "IMAP_HOST")
		check(c.IMAP.Username, "IMAP_USERNAME")
		check(c.IMAP.Password, "IMAP_PASSWORD")
	default:
		return fmt.Errorf("unknown gateway %q (expected %q or %q)", c.Gateway, GatewayGraph, GatewayIMAP)
	}
	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}
	return nil
}

// SaveCalendar persists the default calendar name to the config file,
// keeping the other settings found there.
func SaveCalendar(path, calendar string) error {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	v.Set("calendar", calendar)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

func absPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
