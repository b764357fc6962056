package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be sqlite or memory", c.Store.Driver))
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		errs = append(errs, fmt.Errorf("logging.level %q: %w", c.Logging.Level, err))
	}

	if c.Orders.Timezone != "" {
		if _, err := time.LoadLocation(c.Orders.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("orders.timezone: %w", err))
		}
	}
	if c.Orders.DeliveryFee.IsNegative() {
		errs = append(errs, errors.New("orders.delivery_fee cannot be negative"))
	}
	if c.Orders.MaxWard < 1 {
		errs = append(errs, errors.New("orders.max_ward must be at least 1"))
	}

	if u := c.Notifications.WebhookURL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notifications.webhook_url %q must be an http(s) URL", u))
		}
	}
	if c.Notifications.Workers < 1 {
		errs = append(errs, errors.New("notifications.workers must be at least 1"))
	}

	seen := make(map[string]bool)
	for i, p := range c.Promotions {
		code := strings.ToUpper(p.Code)
		switch {
		case code == "":
			errs = append(errs, fmt.Errorf("promotions[%d].code is required", i))
		case seen[code]:
			errs = append(errs, fmt.Errorf("promotions[%d]: duplicate code %s", i, code))
		}
		seen[code] = true
		if p.Percent.IsNegative() || p.Percent.GreaterThan(hundred) {
			errs = append(errs, fmt.Errorf("promotions[%d].percent must be within 0..100", i))
		}
	}

	return errors.Join(errs...)
}
