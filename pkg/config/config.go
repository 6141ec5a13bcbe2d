package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvWebhookURL = "WECHAT_WEBHOOK_URL"
	EnvConfigPath = "WECOMRELAY_CONFIG"
)

type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	WeCom   WeComConfig   `json:"wecom" yaml:"wecom"`
	Relay   RelayConfig   `json:"relay" yaml:"relay"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Host            string `json:"host" yaml:"host" env:"WECOMRELAY_SERVER_HOST"`
	Port            int    `json:"port" yaml:"port" env:"WECOMRELAY_SERVER_PORT"`
	ReadTimeoutSec  int    `json:"read_timeout_sec" yaml:"read_timeout_sec" env:"WECOMRELAY_SERVER_READ_TIMEOUT_SEC"`
	WriteTimeoutSec int    `json:"write_timeout_sec" yaml:"write_timeout_sec" env:"WECOMRELAY_SERVER_WRITE_TIMEOUT_SEC"`
}

type WeComConfig struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url" env:"WECHAT_WEBHOOK_URL"`
	TimeoutSec int    `json:"timeout_sec" yaml:"timeout_sec" env:"WECOMRELAY_WECOM_TIMEOUT_SEC"`
	// MentionedList is attached to text messages only; WeCom ignores it for markdown.
	MentionedList []string `json:"mentioned_list" yaml:"mentioned_list" env:"WECOMRELAY_WECOM_MENTIONED_LIST"`
}

type RelayConfig struct {
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" env:"WECOMRELAY_RELAY_MAX_BODY_BYTES"`
	// DistinguishUpstreamErrors answers forwarding failures with 502/504 instead of 400.
	DistinguishUpstreamErrors bool `json:"distinguish_upstream_errors" yaml:"distinguish_upstream_errors" env:"WECOMRELAY_RELAY_DISTINGUISH_UPSTREAM_ERRORS"`
}

type LoggingConfig struct {
	Level         string `json:"level" yaml:"level" env:"WECOMRELAY_LOGGING_LEVEL"`
	Enabled       bool   `json:"enabled" yaml:"enabled" env:"WECOMRELAY_LOGGING_ENABLED"`
	Dir           string `json:"dir" yaml:"dir" env:"WECOMRELAY_LOGGING_DIR"`
	Filename      string `json:"filename" yaml:"filename" env:"WECOMRELAY_LOGGING_FILENAME"`
	MaxSizeMB     int    `json:"max_size_mb" yaml:"max_size_mb" env:"WECOMRELAY_LOGGING_MAX_SIZE_MB"`
	RetentionDays int    `json:"retention_days" yaml:"retention_days" env:"WECOMRELAY_LOGGING_RETENTION_DAYS"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 30,
		},
		WeCom: WeComConfig{
			WebhookURL:    "",
			TimeoutSec:    10,
			MentionedList: []string{"@all"},
		},
		Relay: RelayConfig{
			MaxBodyBytes:              1 << 20,
			DistinguishUpstreamErrors: false,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Enabled:       false,
			Dir:           "logs",
			Filename:      "wecomrelay.log",
			MaxSizeMB:     20,
			RetentionDays: 3,
		},
	}
}

// LoadConfig builds the effective configuration: defaults, then the optional
// file at path, then environment variables. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := unmarshalConfig(path, data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv exports variables from a .env file without overriding ones
// already present in the environment. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func unmarshalConfig(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return unmarshalYAMLStrict(data, cfg)
	default:
		return unmarshalJSONStrict(data, cfg)
	}
}

func unmarshalJSONStrict(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing JSON content")
		}
		return err
	}
	return nil
}

func unmarshalYAMLStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) ForwardTimeout() time.Duration {
	return time.Duration(c.WeCom.TimeoutSec) * time.Second
}

func (c *Config) LogFilePath() string {
	filename := c.Logging.Filename
	if filename == "" {
		filename = "wecomrelay.log"
	}
	return filepath.Join(expandHome(c.Logging.Dir), filename)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
