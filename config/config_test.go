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

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zebadiee/ai-token-exo-bridge/config"
	"github.com/zebadiee/ai-token-exo-bridge/health"
	"github.com/zebadiee/ai-token-exo-bridge/priority"
	"go.uber.org/zap/zapcore"
)

const sample = `
listen_addr: 127.0.0.1:9000
log_level: debug
defaults:
  check_interval: 15s
  failure_threshold: 4
targets:
  - name: exo-local
    endpoint: http://localhost:8000
    local: true
    priority: 0
    recovery_threshold: 1
  - name: openrouter
    endpoint: https://openrouter.ai/api
    probe_path: /v1/models
    probe_timeout: 3s
    priority: 1
  - name: huggingface
    endpoint: https://api-inference.huggingface.co
discovery:
  enabled: true
  ports: [8000, 52415]
`

func TestParse(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.True(t, cfg.AutoRecovery)
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)
	assert.Equal(t, []int{8000, 52415}, cfg.Discovery.Ports)
	assert.Equal(t, time.Minute, cfg.Discovery.Interval)

	targets, err := cfg.HealthTargets()
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, health.Target{
		Name:              "exo-local",
		Endpoint:          "http://localhost:8000",
		ProbePath:         "/health",
		CheckInterval:     15 * time.Second,
		ProbeTimeout:      health.DefaultProbeTimeout,
		FailureThreshold:  4,
		RecoveryThreshold: 1,
		Local:             true,
	}, targets[0])
	assert.Equal(t, "/v1/models", targets[1].ProbePath)
	assert.Equal(t, 3*time.Second, targets[1].ProbeTimeout)
	assert.Equal(t, health.DefaultRecoveryThreshold, targets[2].RecoveryThreshold)

	group, err := cfg.PriorityGroup()
	require.NoError(t, err)
	assert.Equal(t, []string{"exo-local", "openrouter"}, group.Ordered())
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		yaml string
		is   error
	}{
		{
			name: "unknown field",
			yaml: "listen_adress: :80\n",
		},
		{
			name: "bad log level",
			yaml: "log_level: loud\n",
		},
		{
			name: "invalid target",
			yaml: "targets:\n  - name: exo\n    endpoint: localhost:8000\n",
			is:   health.ErrInvalidTarget,
		},
		{
			name: "duplicate target",
			yaml: "targets:\n  - {name: a, endpoint: 'http://a'}\n  - {name: a, endpoint: 'http://b'}\n",
			is:   health.ErrInvalidTarget,
		},
		{
			name: "shared priority",
			yaml: "targets:\n  - {name: a, endpoint: 'http://a', priority: 0}\n  - {name: b, endpoint: 'http://b', priority: 0}\n",
			is:   priority.ErrRankTaken,
		},
		{
			name: "bad duration",
			yaml: "defaults:\n  check_interval: often\n",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Parse([]byte(testCase.yaml))
			require.Error(t, err)
			if testCase.is != nil {
				require.ErrorIs(t, err, testCase.is)
			}
		})
	}
}

//nolint:paralleltest // modifies the environment
func TestLoadAppliesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exobridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	t.Setenv("EXOBRIDGE_LISTEN_ADDR", ":7000")
	t.Setenv("EXOBRIDGE_AUTO_RECOVERY", "false")
	t.Setenv("EXOBRIDGE_EVENT_CAPACITY", "50")
	t.Setenv("EXOBRIDGE_DISCOVERY_INTERVAL", "30s")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.False(t, cfg.AutoRecovery)
	assert.Equal(t, 50, cfg.EventCapacity)
	assert.Equal(t, 30*time.Second, cfg.Discovery.Interval)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("EXOBRIDGE_AUTO_RECOVERY", "sometimes")
	_, err = config.Load(path)
	require.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
