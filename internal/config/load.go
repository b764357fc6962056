package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Load reads path over DefaultConfig, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with ZALLDI_* variables. Invalid values fail fast.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("ZALLDI_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("ZALLDI_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("ZALLDI_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("ZALLDI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ZALLDI_LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ZALLDI_LOG_JSON %q: %w", v, err)
		}
		cfg.Logging.JSON = b
	}
	if v := os.Getenv("ZALLDI_TIMEZONE"); v != "" {
		cfg.Orders.Timezone = v
	}
	if v := os.Getenv("ZALLDI_DELIVERY_FEE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid ZALLDI_DELIVERY_FEE %q: %w", v, err)
		}
		cfg.Orders.DeliveryFee = d
	}
	if v := os.Getenv("ZALLDI_WEBHOOK_URL"); v != "" {
		cfg.Notifications.WebhookURL = v
	}
	return nil
}
