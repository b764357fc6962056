// Package config holds the service configuration, read from a YAML file
// with ZALLDI_* environment overrides.
package config

import (
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	Logging       LoggingConfig       `yaml:"logging"`
	Orders        OrdersConfig        `yaml:"orders"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Promotions    []model.Promotion   `yaml:"promotions"`
	Reports       ReportsConfig       `yaml:"reports"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type OrdersConfig struct {
	NumberPrefix     string          `yaml:"number_prefix"`
	Timezone         string          `yaml:"timezone"`
	DeliveryFee      decimal.Decimal `yaml:"delivery_fee"`
	FreeDeliveryOver decimal.Decimal `yaml:"free_delivery_over"`
	MaxWard          int             `yaml:"max_ward"`
}

type NotificationsConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	QueueSize  int           `yaml:"queue_size"`
	Workers    int           `yaml:"workers"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ReportsConfig struct {
	TopN int `yaml:"top_n"`
}

// DefaultConfig returns a configuration that runs out of the box.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0, // event streams stay open
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "zalldi.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
		Orders: OrdersConfig{
			NumberPrefix:     "ZLD",
			Timezone:         "Asia/Kathmandu",
			DeliveryFee:      decimal.NewFromInt(50),
			FreeDeliveryOver: decimal.NewFromInt(1000),
			MaxWard:          32,
		},
		Notifications: NotificationsConfig{
			QueueSize: 256,
			Workers:   2,
			Timeout:   5 * time.Second,
		},
		Reports: ReportsConfig{TopN: 5},
	}
}

// Location resolves Orders.Timezone, falling back to the local zone.
func (c Config) Location() *time.Location {
	if c.Orders.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Orders.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
