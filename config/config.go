// Copyright 2025-2026 The ai-token-exo-bridge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the configuration of the exobridge daemon from a
// YAML file and EXOBRIDGE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/vrischmann/envconfig"
	"github.com/zebadiee/ai-token-exo-bridge/discovery"
	"github.com/zebadiee/ai-token-exo-bridge/eventlog"
	"github.com/zebadiee/ai-token-exo-bridge/health"
	"github.com/zebadiee/ai-token-exo-bridge/priority"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	ListenAddr       string `yaml:"listen_addr"`
	LogLevel         string `yaml:"log_level"`
	AutoRecovery     bool   `yaml:"auto_recovery"`
	EventCapacity    int    `yaml:"event_capacity"`
	ProbeConcurrency int    `yaml:"probe_concurrency"`

	// Defaults fill in the fields a target leaves unset.
	Defaults  TargetDefaults  `yaml:"defaults"`
	Targets   []TargetConfig  `yaml:"targets"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// TargetDefaults are the probe settings shared by all targets.
type TargetDefaults struct {
	ProbePath         string        `yaml:"probe_path"`
	CheckInterval     time.Duration `yaml:"check_interval"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	RecoveryThreshold int           `yaml:"recovery_threshold"`
}

// TargetConfig describes one monitored backend.
type TargetConfig struct {
	Name              string        `yaml:"name"`
	Endpoint          string        `yaml:"endpoint"`
	ProbePath         string        `yaml:"probe_path"`
	CheckInterval     time.Duration `yaml:"check_interval"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	RecoveryThreshold int           `yaml:"recovery_threshold"`
	Local             bool          `yaml:"local"`
	// Priority is the rank of the target among dispatch candidates; lower
	// ranks are tried first. Targets without one are not dispatched to.
	Priority *int `yaml:"priority"`
}

// DiscoveryConfig controls scanning for local nodes.
type DiscoveryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Ports    []int         `yaml:"ports"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Default returns the configuration used for anything a file and the
// environment leave unset.
func Default() Config {
	return Config{
		ListenAddr:    ":8090",
		LogLevel:      "info",
		AutoRecovery:  true,
		EventCapacity: eventlog.DefaultCapacity,
		Defaults: TargetDefaults{
			ProbePath:         health.DefaultProbePath,
			CheckInterval:     health.DefaultCheckInterval,
			ProbeTimeout:      health.DefaultProbeTimeout,
			FailureThreshold:  health.DefaultFailureThreshold,
			RecoveryThreshold: health.DefaultRecoveryThreshold,
		},
		Discovery: DiscoveryConfig{
			Host:     discovery.DefaultHost,
			Ports:    discovery.DefaultPorts(),
			Interval: time.Minute,
			Timeout:  discovery.DefaultTimeout,
		},
	}
}

// Load reads the YAML file at path, if path is not empty, over the
// defaults, applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// fields are rejected. The environment is not consulted.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// envOverrides are read from the environment. Empty values leave the
// configuration unchanged.
type envOverrides struct {
	ListenAddr        string        `envconfig:"EXOBRIDGE_LISTEN_ADDR"`
	LogLevel          string        `envconfig:"EXOBRIDGE_LOG_LEVEL"`
	AutoRecovery      string        `envconfig:"EXOBRIDGE_AUTO_RECOVERY"`
	EventCapacity     int           `envconfig:"EXOBRIDGE_EVENT_CAPACITY"`
	DiscoveryEnabled  string        `envconfig:"EXOBRIDGE_DISCOVERY_ENABLED"`
	DiscoveryInterval time.Duration `envconfig:"EXOBRIDGE_DISCOVERY_INTERVAL"`
}

// ApplyEnv overrides settings from EXOBRIDGE_* environment variables.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.InitWithOptions(&env, envconfig.Options{AllOptional: true}); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if env.ListenAddr != "" {
		c.ListenAddr = env.ListenAddr
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if env.AutoRecovery != "" {
		enabled, err := strconv.ParseBool(env.AutoRecovery)
		if err != nil {
			return fmt.Errorf("EXOBRIDGE_AUTO_RECOVERY: %w", err)
		}
		c.AutoRecovery = enabled
	}
	if env.EventCapacity != 0 {
		c.EventCapacity = env.EventCapacity
	}
	if env.DiscoveryEnabled != "" {
		enabled, err := strconv.ParseBool(env.DiscoveryEnabled)
		if err != nil {
			return fmt.Errorf("EXOBRIDGE_DISCOVERY_ENABLED: %w", err)
		}
		c.Discovery.Enabled = enabled
	}
	if env.DiscoveryInterval != 0 {
		c.Discovery.Interval = env.DiscoveryInterval
	}
	return nil
}

// Validate checks the configuration, including every target.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.EventCapacity < 1 {
		return fmt.Errorf("event_capacity must be positive, got %d", c.EventCapacity)
	}
	if c.Discovery.Enabled && c.Discovery.Interval <= 0 {
		return fmt.Errorf("discovery interval must be positive, got %v", c.Discovery.Interval)
	}
	if _, err := c.HealthTargets(); err != nil {
		return err
	}
	if _, err := c.PriorityGroup(); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// HealthTargets returns the configured targets with defaults applied, in
// file order. It fails on the first invalid target or a repeated name.
func (c *Config) HealthTargets() ([]health.Target, error) {
	targets := make([]health.Target, 0, len(c.Targets))
	seen := make(map[string]struct{}, len(c.Targets))
	for _, tc := range c.Targets {
		target := tc.target(c.Defaults)
		if err := target.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[target.Name]; ok {
			return nil, fmt.Errorf("%w %q: name appears more than once", health.ErrInvalidTarget, target.Name)
		}
		seen[target.Name] = struct{}{}
		targets = append(targets, target)
	}
	return targets, nil
}

// PriorityGroup returns the dispatch candidates: every target with a
// priority, at that rank.
func (c *Config) PriorityGroup() (*priority.Group, error) {
	var members []priority.Member
	for _, tc := range c.Targets {
		if tc.Priority != nil {
			members = append(members, priority.Member{Name: tc.Name, Rank: *tc.Priority})
		}
	}
	group, err := priority.NewGroup(members...)
	if err != nil {
		return nil, fmt.Errorf("priorities: %w", err)
	}
	return group, nil
}

// Scanner returns a discovery scanner for the discovery settings.
func (c *Config) Scanner() *discovery.Scanner {
	options := []discovery.ScannerOption{discovery.WithHost(c.Discovery.Host)}
	if len(c.Discovery.Ports) > 0 {
		options = append(options, discovery.WithPorts(c.Discovery.Ports...))
	}
	if c.Discovery.Timeout > 0 {
		options = append(options, discovery.WithTimeout(c.Discovery.Timeout))
	}
	return discovery.NewScanner(options...)
}

func (tc TargetConfig) target(defaults TargetDefaults) health.Target {
	target := health.Target{
		Name:              tc.Name,
		Endpoint:          tc.Endpoint,
		ProbePath:         tc.ProbePath,
		CheckInterval:     tc.CheckInterval,
		ProbeTimeout:      tc.ProbeTimeout,
		FailureThreshold:  tc.FailureThreshold,
		RecoveryThreshold: tc.RecoveryThreshold,
		Local:             tc.Local,
	}
	if target.ProbePath == "" {
		target.ProbePath = defaults.ProbePath
	}
	if target.CheckInterval == 0 {
		target.CheckInterval = defaults.CheckInterval
	}
	if target.ProbeTimeout == 0 {
		target.ProbeTimeout = defaults.ProbeTimeout
	}
	if target.FailureThreshold == 0 {
		target.FailureThreshold = defaults.FailureThreshold
	}
	if target.RecoveryThreshold == 0 {
		target.RecoveryThreshold = defaults.RecoveryThreshold
	}
	return target
}
