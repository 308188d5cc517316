package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the mytradelog service.
type Config struct {
	Storage Storage  `yaml:"storage"`
	Server  Server   `yaml:"server"`
	Alpaca  Alpaca   `yaml:"alpaca"`
	Logging Logging  `yaml:"logging"`
	UI      UIConfig `yaml:"ui"`
	Import  Import   `yaml:"import"`
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	ArchiveDir string `yaml:"archive_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// Alpaca holds credentials and endpoints for broker-linked account imports.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// UIConfig holds the timing windows that govern account switches and the
// boot splash. All values are milliseconds.
type UIConfig struct {
	SwitchWindowMS  int `yaml:"switch_window_ms"`
	SettleBufferMS  int `yaml:"settle_buffer_ms"`
	GaugeAnimMS     int `yaml:"gauge_anim_ms"`
	SplashMinMS     int `yaml:"splash_min_ms"`
	SplashCeilingMS int `yaml:"splash_ceiling_ms"`
}

// Import controls broker import pacing.
type Import struct {
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
	MaxWorkers      int `yaml:"max_workers"`
}

// SwitchWindow is the fixed duration the UI is dimmed after an account switch.
func (u UIConfig) SwitchWindow() time.Duration {
	return time.Duration(u.SwitchWindowMS) * time.Millisecond
}

// SettleBuffer is the extra height-lock time past the switch window.
func (u UIConfig) SettleBuffer() time.Duration {
	return time.Duration(u.SettleBufferMS) * time.Millisecond
}

// GaugeAnim is the duration of the post-switch gauge animation.
func (u UIConfig) GaugeAnim() time.Duration {
	return time.Duration(u.GaugeAnimMS) * time.Millisecond
}

// SplashMin is the minimum splash display time.
func (u UIConfig) SplashMin() time.Duration {
	return time.Duration(u.SplashMinMS) * time.Millisecond
}

// SplashCeiling is the hard ceiling after which the splash always dismisses.
func (u UIConfig) SplashCeiling() time.Duration {
	return time.Duration(u.SplashCeilingMS) * time.Millisecond
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Storage: Storage{
			SQLitePath: "data/mytradelog.db",
			ArchiveDir: "data/archive",
		},
		Server: Server{
			Host:        "0.0.0.0",
			Port:        8080,
			MetricsPort: 9090,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		UI: UIConfig{
			SwitchWindowMS:  150,
			SettleBufferMS:  200,
			GaugeAnimMS:     380,
			SplashMinMS:     1200,
			SplashCeilingMS: 3000,
		},
		Import: Import{
			RateLimitPerMin: 200,
			MaxWorkers:      4,
		},
	}
}

// Load reads the YAML configuration file at the given path over the defaults
// and then applies environment variable overrides. A missing file is not an
// error; env overrides still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
			return nil, uerr
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
