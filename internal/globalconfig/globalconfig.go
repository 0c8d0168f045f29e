package globalconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/config"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"
	"github.com/MrSnakeDoc/srcwatch/internal/utils/pathutils"

	"github.com/go-playground/validator/v10"
)

type LogConfig struct {
	Level      string `yaml:"level,omitempty" validate:"loglevel"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups,omitempty" validate:"gte=0"`
}

type PersistentConfig struct {
	CatalogPath    string        `yaml:"catalog_path" validate:"required"`
	StateDir       string        `yaml:"state_dir" validate:"required"`
	HistoryDB      string        `yaml:"history_db,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty" validate:"gte=0"`
	RequestDelay   time.Duration `yaml:"request_delay,omitempty" validate:"gte=0"`
	MaxRetries     *int          `yaml:"max_retries,omitempty" validate:"omitempty,gte=0,lte=10"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay,omitempty" validate:"gte=0"`
	UserAgent      string        `yaml:"user_agent,omitempty"`
	StaticSources  []string      `yaml:"static_sources,omitempty"`
	Log            LogConfig     `yaml:"log,omitempty"`
}

const (
	configDir  = ".config/srcwatch"
	configFile = "config.yml"

	EnvConfigPath = "SRCWATCH_CONFIG"
)

var ErrNoConfig = errors.New("no configuration found, run 'srcwatch init' first")

func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

// DefaultPath honors SRCWATCH_CONFIG, then ~/.config/srcwatch/config.yml.
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return pathutils.ToAbsolutePath(p)
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Default returns the config written by 'srcwatch init'.
func Default(catalogPath, stateDir string) *PersistentConfig {
	retries := config.DefaultMaxRetries
	return &PersistentConfig{
		CatalogPath:    catalogPath,
		StateDir:       stateDir,
		RequestTimeout: config.DefaultRequestTimeout,
		RequestDelay:   config.DefaultRequestDelay,
		MaxRetries:     &retries,
		RetryBaseDelay: config.DefaultRetryBaseDelay,
		UserAgent:      config.DefaultUserAgent,
		StaticSources:  append([]string(nil), config.DefaultStaticSources...),
		Log:            LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 12},
	}
}

// Load reads the YAML file at path and resolves relative paths against its directory.
func Load(path string) (*PersistentConfig, error) {
	if ok, err := utils.FileExists(path); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w (looked at %s)", ErrNoConfig, path)
	}

	var cfg PersistentConfig
	if err := utils.FileReader(path, utils.FileTypeYAML, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	var err error
	if cfg.CatalogPath, err = pathutils.ResolveFrom(base, cfg.CatalogPath); err != nil {
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	if cfg.StateDir, err = pathutils.ResolveFrom(base, cfg.StateDir); err != nil {
		return nil, fmt.Errorf("failed to resolve state dir: %w", err)
	}
	if cfg.HistoryDB, err = pathutils.ResolveFrom(base, cfg.HistoryDB); err != nil {
		return nil, fmt.Errorf("failed to resolve history db: %w", err)
	}
	return &cfg, nil
}

func (c *PersistentConfig) Save(path string) error {
	out := *c
	var err error
	if out.CatalogPath, err = pathutils.ToHomePathFormat(c.CatalogPath); err != nil {
		return fmt.Errorf("failed to convert to home path format: %w", err)
	}
	if out.StateDir, err = pathutils.ToHomePathFormat(c.StateDir); err != nil {
		return fmt.Errorf("failed to convert to home path format: %w", err)
	}

	if err := utils.CreateFile(path, &out, utils.FileTypeYAML, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// HistoryPath defaults to <state_dir>/history.db.
func (c *PersistentConfig) HistoryPath() string {
	if c.HistoryDB != "" {
		return c.HistoryDB
	}
	return filepath.Join(c.StateDir, "history.db")
}

// MonitorConfig overlays the file values on the defaults.
func (c *PersistentConfig) MonitorConfig() config.Config {
	mc := config.DefaultMonitorConfig()
	if c.RequestTimeout > 0 {
		mc.RequestTimeout = c.RequestTimeout
	}
	if c.RequestDelay > 0 {
		mc.RequestDelay = c.RequestDelay
	}
	if c.MaxRetries != nil {
		mc.MaxRetries = *c.MaxRetries
	}
	if c.RetryBaseDelay > 0 {
		mc.RetryBaseDelay = c.RetryBaseDelay
	}
	if c.UserAgent != "" {
		mc.UserAgent = c.UserAgent
	}
	if c.StaticSources != nil {
		mc.StaticSources = append([]string(nil), c.StaticSources...)
	}
	return mc
}

// Validate checks the decoded file before any path is touched.
func Validate(c *PersistentConfig) error {
	validate := validator.New()

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "debug", "info", "warn", "error":
			return true
		default:
			return false
		}
	})

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
