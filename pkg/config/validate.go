package config

import (
	"fmt"
	"net/url"
	"strings"

	"wecomrelay/pkg/logger"
)

// Validate returns configuration problems found in cfg.
// It does not mutate cfg.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{fmt.Errorf("config is nil")}
	}

	var errs []error

	if strings.TrimSpace(cfg.WeCom.WebhookURL) == "" {
		errs = append(errs, fmt.Errorf("wecom.webhook_url is required (set %s)", EnvWebhookURL))
	} else if err := validateWebhookURL(cfg.WeCom.WebhookURL); err != nil {
		errs = append(errs, err)
	}
	if cfg.WeCom.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("wecom.timeout_sec must be > 0"))
	}
	for i, m := range cfg.WeCom.MentionedList {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Errorf("wecom.mentioned_list[%d] must not be empty", i))
		}
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in [1,65535]"))
	}
	if cfg.Server.ReadTimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout_sec must be >= 0"))
	}
	if cfg.Server.WriteTimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout_sec must be >= 0"))
	}
	if cfg.Server.WriteTimeoutSec > 0 && cfg.WeCom.TimeoutSec > 0 && cfg.Server.WriteTimeoutSec <= cfg.WeCom.TimeoutSec {
		errs = append(errs, fmt.Errorf("server.write_timeout_sec (%d) must be greater than wecom.timeout_sec (%d)",
			cfg.Server.WriteTimeoutSec, cfg.WeCom.TimeoutSec))
	}

	if cfg.Relay.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("relay.max_body_bytes must be > 0"))
	}

	if _, err := logger.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if cfg.Logging.Enabled {
		if strings.TrimSpace(cfg.Logging.Dir) == "" {
			errs = append(errs, fmt.Errorf("logging.dir is required when logging.enabled=true"))
		}
		if cfg.Logging.MaxSizeMB <= 0 {
			errs = append(errs, fmt.Errorf("logging.max_size_mb must be > 0"))
		}
		if cfg.Logging.RetentionDays <= 0 {
			errs = append(errs, fmt.Errorf("logging.retention_days must be > 0"))
		}
	}

	return errs
}

func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("wecom.webhook_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("wecom.webhook_url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("wecom.webhook_url must include a host")
	}
	return nil
}
