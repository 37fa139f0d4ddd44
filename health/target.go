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

package health

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidTarget is wrapped by every error returned from [Target.Validate].
var ErrInvalidTarget = errors.New("invalid target")

// Default values applied by [Target.WithDefaults].
const (
	DefaultProbePath         = "/health"
	DefaultCheckInterval     = 10 * time.Second
	DefaultProbeTimeout      = 5 * time.Second
	DefaultFailureThreshold  = 3
	DefaultRecoveryThreshold = 2
)

// Target identifies a monitored backend and configures how it is probed.
// A Target is immutable once registered; to change it, remove it and
// register it again.
type Target struct {
	// Name is the unique key of the target. Routing candidates refer to
	// targets by name.
	Name string
	// Endpoint is the base URL of the backend. The scheme must be "http",
	// "https" or "h2c".
	Endpoint string
	// ProbePath is appended to Endpoint to form the health check URL.
	ProbePath string
	// CheckInterval is the time between two background probes.
	CheckInterval time.Duration
	// FailureThreshold is the number of consecutive failed probes after
	// which the target is declared offline.
	FailureThreshold int
	// RecoveryThreshold is the number of consecutive successful probes an
	// offline target needs before it is healthy again.
	RecoveryThreshold int
	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration
	// Local marks a node of the local inference cluster, as opposed to a
	// cloud provider. Recovery of a local node is a failover to the cloud;
	// recovery of a cloud provider is a reset.
	Local bool
}

// WithDefaults returns a copy of t where every zero field that has a
// default is set to it. Name and Endpoint are never defaulted.
func (t Target) WithDefaults() Target {
	if t.ProbePath == "" {
		t.ProbePath = DefaultProbePath
	}
	if t.CheckInterval == 0 {
		t.CheckInterval = DefaultCheckInterval
	}
	if t.ProbeTimeout == 0 {
		t.ProbeTimeout = DefaultProbeTimeout
	}
	if t.FailureThreshold == 0 {
		t.FailureThreshold = DefaultFailureThreshold
	}
	if t.RecoveryThreshold == 0 {
		t.RecoveryThreshold = DefaultRecoveryThreshold
	}
	return t
}

// Validate checks that t is complete and consistent.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTarget)
	}
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidTarget, t.Name, fmt.Sprintf(format, args...))
	}
	endpoint, err := url.Parse(t.Endpoint)
	if err != nil {
		return invalid("endpoint: %v", err)
	}
	switch endpoint.Scheme {
	case "http", "https", "h2c":
	default:
		return invalid("endpoint scheme %q is not one of http, https, h2c", endpoint.Scheme)
	}
	if endpoint.Host == "" {
		return invalid("endpoint %q has no host", t.Endpoint)
	}
	if t.CheckInterval <= 0 {
		return invalid("check interval must be positive, got %v", t.CheckInterval)
	}
	if t.ProbeTimeout <= 0 {
		return invalid("probe timeout must be positive, got %v", t.ProbeTimeout)
	}
	if t.FailureThreshold < 1 {
		return invalid("failure threshold must be at least 1, got %d", t.FailureThreshold)
	}
	if t.RecoveryThreshold < 1 {
		return invalid("recovery threshold must be at least 1, got %d", t.RecoveryThreshold)
	}
	return nil
}

// ProbeURL returns the URL probed for this target.
func (t Target) ProbeURL() string {
	path := t.ProbePath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(t.Endpoint, "/") + path
}
