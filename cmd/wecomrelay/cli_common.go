package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"wecomrelay/pkg/config"
	"wecomrelay/pkg/logger"
)

const defaultConfigPath = "config.json"

func (o *globalOptions) getConfigPath() string {
	if strings.TrimSpace(o.configPath) != "" {
		return o.configPath
	}
	if fromEnv := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); fromEnv != "" {
		return fromEnv
	}
	return defaultConfigPath
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.envFile != "" {
		if err := config.LoadDotEnv(o.envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}
	return config.LoadConfig(o.getConfigPath())
}

func (o *globalOptions) configureLogging(cfg *config.Config) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logger.INFO
	}
	if o.debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)

	if !cfg.Logging.Enabled {
		logger.DisableFileLogging()
		return
	}

	logFile := cfg.LogFilePath()
	if err := logger.EnableFileLogging(logFile, cfg.Logging.MaxSizeMB, cfg.Logging.RetentionDays); err != nil {
		fmt.Printf("Warning: failed to enable file logging: %v\n", err)
	}
}

// redactWebhookURL drops the query string, which carries the bot key.
func redactWebhookURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(invalid)"
	}
	redacted := u.Scheme + "://" + u.Host + u.Path
	if u.RawQuery != "" {
		redacted += "?…"
	}
	return redacted
}
