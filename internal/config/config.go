// Package config loads console configuration from an optional YAML file
// with CUTPLAN_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full console configuration.
type Config struct {
	Listen string `yaml:"listen"`
	DBPath string `yaml:"db_path"`

	Remote struct {
		BaseURL string `yaml:"base_url"`
		FeedURL string `yaml:"feed_url"`
		Token   string `yaml:"token"`
	} `yaml:"remote"`

	// DedupeWindowMS bounds how often a repeated feed event may trigger a
	// refetch cycle.
	DedupeWindowMS int `yaml:"dedupe_window_ms"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	var c Config
	c.Listen = ":9000"
	c.DBPath = "cutplan.db"
	c.Remote.BaseURL = "http://localhost:8080"
	c.Remote.FeedURL = "ws://localhost:8080/feed"
	c.DedupeWindowMS = 700
	return c
}

// Load reads the config file (when path is non-empty) and applies
// environment overrides.
func Load(path string) (Config, error) {
	c := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&c)
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("CUTPLAN_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("CUTPLAN_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("CUTPLAN_REMOTE_URL"); v != "" {
		c.Remote.BaseURL = v
	}
	if v := os.Getenv("CUTPLAN_FEED_URL"); v != "" {
		c.Remote.FeedURL = v
	}
	if v := os.Getenv("CUTPLAN_REMOTE_TOKEN"); v != "" {
		c.Remote.Token = v
	}
	if v := os.Getenv("CUTPLAN_DEDUPE_WINDOW_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.DedupeWindowMS = ms
		}
	}
}

// DedupeWindow returns the configured window as a duration.
func (c Config) DedupeWindow() time.Duration {
	return time.Duration(c.DedupeWindowMS) * time.Millisecond
}
