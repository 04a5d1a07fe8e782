package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/fingerctl/internal/poller"
	"github.com/danmuck/fingerctl/internal/publish"
)

// ServiceConfig drives `fingerctl serve`.
type ServiceConfig struct {
	ID           string
	Addr         string
	CorsOrigins  []string
	Inventory    string
	PollInterval time.Duration
	LogLevel     string
	MQTT         publish.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ID:           "fingerctl",
		Addr:         ":9300",
		CorsOrigins:  []string{"http://localhost:3000"},
		Inventory:    "devices.toml",
		PollInterval: poller.MinSpacing,
		MQTT:         publish.DefaultConfig(),
	}
}

type fileMQTT struct {
	Broker         string `toml:"broker"`
	ClientID       string `toml:"client_id"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TopicPrefix    string `toml:"topic_prefix"`
	QoS            int    `toml:"qos"`
	Retain         bool   `toml:"retain"`
	PublishTimeout string `toml:"publish_timeout"`
}

type fileConfig struct {
	ID           string   `toml:"id"`
	Addr         string   `toml:"addr"`
	CorsOrigins  []string `toml:"cors_origins"`
	Inventory    string   `toml:"inventory"`
	PollInterval string   `toml:"poll_interval"`
	LogLevel     string   `toml:"log_level"`
	MQTT         fileMQTT `toml:"mqtt"`
}

func loadServiceConfig(path string) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("load fingerctl config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if meta.IsDefined("inventory") {
		cfg.Inventory = strings.TrimSpace(raw.Inventory)
	}
	if cfg.Inventory != "" && !filepath.IsAbs(cfg.Inventory) {
		cfg.Inventory = filepath.Join(filepath.Dir(path), cfg.Inventory)
	}

	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		if d < poller.MinSpacing {
			return ServiceConfig{}, fmt.Errorf("poll_interval %s is below the %s minimum", d, poller.MinSpacing)
		}
		cfg.PollInterval = d
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("mqtt", "broker") {
		cfg.MQTT.Broker = strings.TrimSpace(raw.MQTT.Broker)
	}
	if meta.IsDefined("mqtt", "client_id") {
		cfg.MQTT.ClientID = strings.TrimSpace(raw.MQTT.ClientID)
	}
	if meta.IsDefined("mqtt", "username") {
		cfg.MQTT.Username = raw.MQTT.Username
	}
	if meta.IsDefined("mqtt", "password") {
		cfg.MQTT.Password = raw.MQTT.Password
	}
	if meta.IsDefined("mqtt", "topic_prefix") {
		cfg.MQTT.TopicPrefix = strings.TrimSpace(raw.MQTT.TopicPrefix)
	}
	if meta.IsDefined("mqtt", "qos") {
		if raw.MQTT.QoS < 0 || raw.MQTT.QoS > 2 {
			return ServiceConfig{}, fmt.Errorf("mqtt qos must be 0, 1 or 2: %d", raw.MQTT.QoS)
		}
		cfg.MQTT.QoS = byte(raw.MQTT.QoS)
	}
	if meta.IsDefined("mqtt", "retain") {
		cfg.MQTT.Retain = raw.MQTT.Retain
	}
	if meta.IsDefined("mqtt", "publish_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.MQTT.PublishTimeout))
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("parse mqtt.publish_timeout: %w", err)
		}
		cfg.MQTT.PublishTimeout = d
	}

	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
