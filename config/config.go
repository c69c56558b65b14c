// Package config loads the daemon configuration: an optional TOML file with
// environment-variable overrides on top. Everything has a working default so
// the daemon runs with no configuration at all.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	EnvAddr          = "WMV_ADDR"
	EnvBaseURL       = "WMV_BASE_URL"
	EnvStorageDir    = "WMV_STORAGE_DIR"
	EnvAdapter       = "WMV_ADAPTER"
	EnvBlindmarkSeed = "WMV_BLINDMARK_SEED"
	EnvBlindmarkD1   = "WMV_BLINDMARK_D1"
	EnvBlindmarkD2   = "WMV_BLINDMARK_D2"
	EnvLsbmarkSeed   = "WMV_LSBMARK_SEED"
)

type Blindmark struct {
	Seed int64 `toml:"seed"`
	D1   int   `toml:"d1"`
	D2   int   `toml:"d2"`
}

type Lsbmark struct {
	Seed int64 `toml:"seed"`
}

type Config struct {
	Addr       string    `toml:"addr"`
	BaseURL    string    `toml:"base_url"`
	StorageDir string    `toml:"storage_dir"`
	Adapter    string    `toml:"adapter"`
	Blindmark  Blindmark `toml:"blindmark"`
	Lsbmark    Lsbmark   `toml:"lsbmark"`
}

func defaults() Config {
	return Config{
		Addr:       ":8000",
		StorageDir: "storage",
		Adapter:    "blindmark",
	}
}

// Load reads the config file at path (skipped when path is empty or the file
// does not exist), then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDir)); v != "" {
		cfg.StorageDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAdapter)); v != "" {
		cfg.Adapter = v
	}
	if v, ok := parseInt64(os.Getenv(EnvBlindmarkSeed)); ok {
		cfg.Blindmark.Seed = v
	}
	if v, ok := parseInt(os.Getenv(EnvBlindmarkD1)); ok {
		cfg.Blindmark.D1 = v
	}
	if v, ok := parseInt(os.Getenv(EnvBlindmarkD2)); ok {
		cfg.Blindmark.D2 = v
	}
	if v, ok := parseInt64(os.Getenv(EnvLsbmarkSeed)); ok {
		cfg.Lsbmark.Seed = v
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("config: addr is required")
	}
	if strings.TrimSpace(cfg.StorageDir) == "" {
		return fmt.Errorf("config: storage_dir is required")
	}
	if strings.TrimSpace(cfg.Adapter) == "" {
		return fmt.Errorf("config: adapter is required")
	}
	return nil
}

func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt64(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
