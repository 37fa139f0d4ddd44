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

package exobridge_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	exobridge "github.com/zebadiee/ai-token-exo-bridge"
	"github.com/zebadiee/ai-token-exo-bridge/eventlog"
	"github.com/zebadiee/ai-token-exo-bridge/health"
	"github.com/zebadiee/ai-token-exo-bridge/priority"
	"go.uber.org/zap/zaptest"
)

func TestDispatchExhaustion(t *testing.T) {
	t.Parallel()

	router := exobridge.NewRouter(fixedStatus{}, nil, exobridge.WithLogger(zaptest.NewLogger(t)))
	var called []string
	_, provider, err := exobridge.Dispatch(
		context.Background(), router, "hello", []string{"a", "b", "c"},
		func(_ context.Context, provider, _ string) (string, error) {
			called = append(called, provider)
			return "", fmt.Errorf("%s: HTTP 429 rate limit exceeded", provider)
		},
	)
	assert.Empty(t, provider)
	assert.Equal(t, []string{"a", "b", "c"}, called)

	var unavailable *exobridge.AllProvidersUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Len(t, unavailable.Attempts, 3)
	for i, name := range []string{"a", "b", "c"} {
		attempt := unavailable.Attempts[i]
		assert.Equal(t, name, attempt.Provider)
		assert.False(t, attempt.Skipped)
		assert.Equal(t, health.ReasonRateLimit, attempt.Reason)
	}
	assert.Contains(t, err.Error(), "a: a: HTTP 429")
	assert.Contains(t, err.Error(), "; c: c: HTTP 429")

	actions := router.Events().Actions(time.Time{})
	require.Len(t, actions, 3)
	for i, action := range actions {
		assert.Equal(t, eventlog.ActionFailover, action.Action)
		assert.Equal(t, called[i], action.Target)
		assert.False(t, action.Success)
		assert.NotEmpty(t, action.Err)
	}
}

func TestDispatchShortCircuit(t *testing.T) {
	t.Parallel()

	router := exobridge.NewRouter(fixedStatus{"a": health.StatusOffline, "b": health.StatusHealthy, "c": health.StatusHealthy}, nil)
	var called []string
	resp, provider, err := exobridge.Dispatch(
		context.Background(), router, 1, []string{"a", "b", "c"},
		func(_ context.Context, provider string, req int) (int, error) {
			called = append(called, provider)
			return req + 1, nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "b", provider)
	assert.Equal(t, 2, resp)
	assert.Equal(t, []string{"b"}, called)
	assert.Zero(t, router.Events().Len())
}

func TestDispatchSkipsUnroutable(t *testing.T) {
	t.Parallel()

	router := exobridge.NewRouter(fixedStatus{
		"offline":    health.StatusOffline,
		"recovering": health.StatusRecovering,
		"failing":    health.StatusFailing,
	}, nil)
	var called []string
	_, _, err := exobridge.Dispatch(
		context.Background(), router, struct{}{}, []string{"offline", "recovering", "failing", "unmonitored"},
		func(_ context.Context, provider string, _ struct{}) (struct{}, error) {
			called = append(called, provider)
			return struct{}{}, errors.New("connection refused")
		},
	)
	assert.Equal(t, []string{"failing", "unmonitored"}, called)
	require.ErrorIs(t, err, exobridge.ErrProviderSkipped)

	var unavailable *exobridge.AllProvidersUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Len(t, unavailable.Attempts, 4)
	assert.True(t, unavailable.Attempts[0].Skipped)
	assert.Equal(t, health.StatusOffline, unavailable.Attempts[0].Status)
	assert.True(t, unavailable.Attempts[1].Skipped)
	assert.Equal(t, health.StatusRecovering, unavailable.Attempts[1].Status)
	assert.False(t, unavailable.Attempts[2].Skipped)
	assert.Equal(t, health.ReasonConnection, unavailable.Attempts[3].Reason)
	assert.Contains(t, err.Error(), "offline: skipped: target is offline")
	// Skipped candidates are not failovers.
	assert.Len(t, router.Events().Actions(time.Time{}), 2)
}

func TestDispatchPrefersLocalNode(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	monitor := exobridge.NewMonitor(newScriptedProber())
	exoLocal := testTarget("ExoLocal")
	exoLocal.Local = true
	require.NoError(t, monitor.Register(exoLocal))
	require.NoError(t, monitor.Register(testTarget("OpenRouter")))
	_, err := monitor.ForceCheck(ctx)
	require.NoError(t, err)

	group, err := priority.NewGroup(
		priority.Member{Name: "OpenRouter", Rank: 1},
		priority.Member{Name: "ExoLocal", Rank: 0},
	)
	require.NoError(t, err)
	router := exobridge.NewRouter(monitor, monitor.Events())
	candidates := router.Candidates(group)
	assert.Equal(t, []string{"ExoLocal", "OpenRouter"}, candidates)

	var called []string
	resp, provider, err := exobridge.Dispatch(ctx, router, "prompt", candidates,
		func(_ context.Context, provider, req string) (string, error) {
			called = append(called, provider)
			return provider + " answered " + req, nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "ExoLocal", provider)
	assert.Equal(t, "ExoLocal answered prompt", resp)
	assert.Equal(t, []string{"ExoLocal"}, called)
}

func TestDispatchFailsOverWhenMonitoredTargetGoesOffline(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	prober := newScriptedProber()
	prober.script("exo", false, false, false)
	monitor := exobridge.NewMonitor(prober)
	require.NoError(t, monitor.Register(testTarget("exo")))
	router := exobridge.NewRouter(monitor, monitor.Events())
	send := func(_ context.Context, provider string, _ string) (string, error) {
		return provider, nil
	}

	for range 3 {
		_, provider, err := exobridge.Dispatch(ctx, router, "", []string{"exo", "cloud"}, send)
		require.NoError(t, err)
		assert.Equal(t, "exo", provider, "degraded and failing targets still receive traffic")
		_, err = monitor.ForceCheck(ctx, "exo")
		require.NoError(t, err)
	}
	assert.False(t, router.Usable("exo"))
	assert.True(t, router.Usable("cloud"))
	_, provider, err := exobridge.Dispatch(ctx, router, "", []string{"exo", "cloud"}, send)
	require.NoError(t, err)
	assert.Equal(t, "cloud", provider)
}

func TestDispatchStopsWhenContextDone(t *testing.T) {
	t.Parallel()

	router := exobridge.NewRouter(fixedStatus{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	var called []string
	_, _, err := exobridge.Dispatch(ctx, router, "", []string{"a", "b", "c"},
		func(_ context.Context, provider, _ string) (string, error) {
			called = append(called, provider)
			cancel()
			return "", errors.New("stream interrupted")
		},
	)
	assert.Equal(t, []string{"a"}, called)
	require.ErrorIs(t, err, context.Canceled)
	var unavailable *exobridge.AllProvidersUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Len(t, unavailable.Attempts, 3)
	assert.Equal(t, "b", unavailable.Attempts[1].Provider)
	require.ErrorIs(t, unavailable.Attempts[2].Err, context.Canceled)

	_, _, err = exobridge.Dispatch(ctx, router, "", []string{"a"},
		func(context.Context, string, string) (string, error) {
			t.Fatal("must not be called with a done context")
			return "", nil
		},
	)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDispatchWithoutCandidates(t *testing.T) {
	t.Parallel()

	router := exobridge.NewRouter(fixedStatus{}, nil)
	_, _, err := exobridge.Dispatch(context.Background(), router, "", nil,
		func(context.Context, string, string) (string, error) {
			return "", nil
		},
	)
	var unavailable *exobridge.AllProvidersUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Empty(t, unavailable.Attempts)
	assert.Equal(t, "all providers unavailable: no candidates given", err.Error())
}

func TestDispatchMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	router := exobridge.NewRouter(fixedStatus{"a": health.StatusOffline}, nil, exobridge.WithMetrics(registry))
	_, _, err := exobridge.Dispatch(context.Background(), router, "", []string{"a", "b", "c"},
		func(_ context.Context, provider, _ string) (string, error) {
			if provider == "b" {
				return "", errors.New("HTTP 500")
			}
			return "ok", nil
		},
	)
	require.NoError(t, err)
	expected := `
# HELP exobridge_dispatch_attempts_total Total number of dispatch attempts by provider and outcome
# TYPE exobridge_dispatch_attempts_total counter
exobridge_dispatch_attempts_total{outcome="failure",provider="b"} 1
exobridge_dispatch_attempts_total{outcome="skipped",provider="a"} 1
exobridge_dispatch_attempts_total{outcome="success",provider="c"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "exobridge_dispatch_attempts_total"))
}

func TestNewRouterPanicsWithoutReader(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		exobridge.NewRouter(nil, nil)
	})
	assert.Panics(t, func() {
		exobridge.NewMonitor(nil)
	})
}

// fixedStatus reports a fixed status per provider. Providers missing from
// the map are not monitored.
type fixedStatus map[string]health.Status

func (f fixedStatus) Snapshot(name string) (health.TargetState, bool) {
	status, ok := f[name]
	if !ok {
		return health.TargetState{}, false
	}
	return health.TargetState{Status: status}, true
}
